// Command refine is a demonstration harness for feedback-driven prediction.
// Its ask command runs a question-answering signature against a configured
// provider, scoring answers for brevity and retrying with hints until the
// answer is terse enough.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-refinery/internal/domain"
	"github.com/ahrav/go-refinery/internal/llm"
	"github.com/ahrav/go-refinery/internal/llm/configuration"
	"github.com/ahrav/go-refinery/internal/refine"
)

var (
	version = "dev"
	commit  = "unknown"
)

type askOptions struct {
	configPath string
	logLevel   string

	provider string
	model    string

	retry       bool
	validation  bool
	trace       bool
	maxAttempts int
	threshold   float64
}

func main() {
	opts := &askOptions{}

	rootCmd := &cobra.Command{
		Use:           "refine",
		Short:         "Feedback-driven LLM prediction with retry and hints",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question and refine the answer until it is concise",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), opts, strings.Join(args, " "))
		},
	}

	askCmd.Flags().StringVar(&opts.provider, "provider", "", "provider to use (openai, anthropic, google)")
	askCmd.Flags().StringVar(&opts.model, "model", "", "model to use")
	askCmd.Flags().BoolVar(&opts.retry, "retry", true, "retry with feedback hints until the threshold is met")
	askCmd.Flags().BoolVar(&opts.validation, "validation", false, "gate each prediction with the brevity score")
	askCmd.Flags().BoolVar(&opts.trace, "trace", false, "print per-attempt trace after the run")
	askCmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 3, "maximum prediction attempts")
	askCmd.Flags().Float64Var(&opts.threshold, "threshold", 1.0, "minimum brevity score to accept an answer")

	rootCmd.AddCommand(askCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runAsk(ctx context.Context, opts *askOptions, question string) error {
	setupLogging(opts.logLevel)

	cfg, err := configuration.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building LLM client: %w", err)
	}
	defer client.Close()

	sig, err := domain.NewSignature("qa",
		"Answer questions with short factoid answers.",
		[]domain.FieldSpec{{Name: "question", Desc: "the question to answer"}},
		[]domain.FieldSpec{{Name: "answer", Desc: "often between 1 and 5 words"}},
	)
	if err != nil {
		return err
	}

	brevity := brevityFeedback()

	predictOpts := []refine.PredictOption{}
	if opts.provider != "" || opts.model != "" {
		predictOpts = append(predictOpts, refine.WithProvider(opts.provider, opts.model))
	}
	if opts.validation {
		predictOpts = append(predictOpts, refine.WithValidation(refine.NewValidation(brevity, opts.threshold)))
	}

	var predictor refine.Predictor = refine.NewPredict(sig, client, predictOpts...)
	if opts.retry {
		predictor, err = refine.NewRetrier(predictor, brevity, opts.maxAttempts, opts.threshold)
		if err != nil {
			return err
		}
	}

	var trace *refine.Trace
	if opts.trace {
		trace = refine.NewTrace()
		ctx = refine.WithTrace(ctx, trace)
	}

	in, err := domain.NewInput(sig, map[string]string{"question": question})
	if err != nil {
		return err
	}

	out, err := predictor.Call(ctx, in)
	if opts.trace && trace != nil {
		printTrace(trace)
	}
	if err != nil {
		return err
	}

	answer, _ := out.Get("answer")
	fmt.Println(answer)
	return nil
}

// brevityFeedback scores answers by word count. A one-word answer scores
// 1.0; the score is 1/(1+gaps) where gaps is the number of spaces. Scores
// below 1 carry a note asking for a shorter answer.
func brevityFeedback() refine.FeedbackFunc {
	return func(_ context.Context, _ domain.Input, out domain.Output) (domain.Feedback, error) {
		answer, _ := out.Get("answer")
		gaps := strings.Count(strings.TrimSpace(answer), " ")
		score := 1.0 / float64(1+gaps)
		note := ""
		if score < 1.0 {
			note = "the answer is too long"
		}
		return domain.NewFeedback(score, note), nil
	}
}

func printTrace(trace *refine.Trace) {
	for _, e := range trace.Entries() {
		status := fmt.Sprintf("score=%.3f", e.Score)
		if e.Err != "" {
			status = "error=" + e.Err
		}
		fmt.Fprintf(os.Stderr, "attempt %d hinted=%t %s note=%q answer=%q (%s)\n",
			e.Attempt, e.Hinted, status, e.Note, e.Outputs["answer"], e.Duration.Round(time.Millisecond))
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

package retry

import "sync/atomic"

// retryStats provides thread-safe retry metrics using atomic operations,
// tracking attempts and success/failure outcomes without mutex overhead.
type retryStats struct {
	totalAttempts     atomic.Int64 // Total attempts across all requests
	successfulRetries atomic.Int64 // Requests that succeeded after retry
	failedRetries     atomic.Int64 // Requests that failed after all retries
}

func (s *retryStats) snapshot() (attempts, succeeded, failed int64) {
	return s.totalAttempts.Load(), s.successfulRetries.Load(), s.failedRetries.Load()
}

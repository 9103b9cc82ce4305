package device

import (
	"time"
)

const (
	defaultQueueDepth = 256
	maxBatchSize      = 32
	// reconnectBackoff bounds how often a worker retries opening a port that failed to connect.
	reconnectBackoff = 1 * time.Second
)

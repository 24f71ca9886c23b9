package analytics

import (
	"fmt"
	"os"
	"time"
)

// NewConsumerID builds a consumer name unique across worker restarts so
// that stale pending entries from a crashed consumer stay claimable.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

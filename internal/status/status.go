// Package status tracks a broker process's in-memory health summary: its
// current status string and a running error count/last-error pair. It has
// no wire presence; it exists so an operator attached to the same process
// can ask "what's wrong" without scraping logs.
package status

import "sync"

// Tracker is a concurrency-safe status/error-counter. The zero value is
// ready to use.
type Tracker struct {
	mu         sync.RWMutex
	status     string
	errorCount int
	lastError  error
}

// SetStatus records the current broker status (e.g. "starting", "running",
// "shutting-down").
func (t *Tracker) SetStatus(value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = value
}

// Status returns the current status.
func (t *Tracker) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// RecordError stores err as the last error and increments the error
// counter.
func (t *Tracker) RecordError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = err
	t.errorCount++
}

// ErrorCount returns the total number of errors recorded so far.
func (t *Tracker) ErrorCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errorCount
}

// LastError returns the most recently recorded error, or nil if none has
// been recorded.
func (t *Tracker) LastError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastError
}

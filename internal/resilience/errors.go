// Package resilience classifies pipeline errors so workers can record
// failures with the right blame: the third-party source or our own store.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// AdapterError wraps a failure fetching or parsing data from a
// third-party source. The owning job is marked failed; no automatic
// retry happens in this layer.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	if e.Source == "" {
		return "adapter: " + e.Err.Error()
	}
	return "adapter " + e.Source + ": " + e.Err.Error()
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError wraps err as an adapter failure for the named source.
func NewAdapterError(source string, err error) *AdapterError {
	return &AdapterError{Source: source, Err: err}
}

// StoreError wraps a persistence-layer failure. It propagates to the
// caller; the owning job is marked failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a store failure for the named operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// IsAdapter reports whether err originated in a source adapter.
func IsAdapter(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}

// IsStore reports whether err originated in the persistence layer.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsTransient returns true if the error matches common transient
// network patterns (timeouts, resets, DNS failures). Transient adapter
// errors still fail the owning job; the classification only feeds audit
// detail and operator triage.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

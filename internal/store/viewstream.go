package store

import (
	"sync"

	"github.com/clinicport/emergency-alerts/internal/domain/alert"
)

// ViewStream is a Subscription implementation shared by the store backends.
// Emissions are latest-wins: a consumer that falls behind skips intermediate
// sets and always observes the newest one, which is exactly the contract of
// a full-set subscription.
type ViewStream struct {
	// ch carries at most one pending emission.
	ch chan []*alert.Record
	// onClose is invoked once when the stream shuts down, in any way.
	onClose func()

	// mu serialises publication, failure and close.
	mu sync.Mutex
	// err is the terminal error reported by Err after ch is closed.
	err error
	// closed marks the stream as terminated.
	closed bool
}

// NewViewStream returns a stream ready for publication. The optional onClose
// callback runs exactly once when the stream terminates, deliberately or not.
func NewViewStream(onClose func()) *ViewStream {
	return &ViewStream{
		ch:      make(chan []*alert.Record, 1),
		onClose: onClose,
	}
}

// Updates implements Subscription.
func (v *ViewStream) Updates() <-chan []*alert.Record {
	return v.ch
}

// Err implements Subscription.
func (v *ViewStream) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.err
}

// Publish emits a new full set, replacing any emission the consumer has not
// collected yet. Publishing on a terminated stream is a no-op.
func (v *ViewStream) Publish(set []*alert.Record) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}

	// Drop the stale pending emission, if any, then queue the fresh one.
	select {
	case <-v.ch:
	default:
	}

	v.ch <- set
}

// Fail terminates the stream with an error. The first call wins.
func (v *ViewStream) Fail(err error) {
	v.terminate(err)
}

// Close implements Subscription.
func (v *ViewStream) Close() {
	v.terminate(nil)
}

// terminate closes the channel and records the terminal error once.
func (v *ViewStream) terminate(err error) {
	v.mu.Lock()

	if v.closed {
		v.mu.Unlock()
		return
	}

	v.closed = true
	v.err = err
	close(v.ch)

	onClose := v.onClose
	v.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

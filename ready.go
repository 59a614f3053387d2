package siteinit

import (
	"github.com/joeycumines/logiface"
)

// ReadyFunc is invoked once per document, when its content has definitely
// loaded. A returned error (or panic) is logged, and does not affect other
// callbacks.
type ReadyFunc func(doc Document) error

// Deduplicator wraps the host's raw load signal, firing a synthetic ready
// event at most once per [Document].
//
// The host may deliver the raw signal many times per navigation, including
// for sub-resources, which share the top-level frame but not its location.
// Only a signal whose target matches the top-level frame's location fires,
// and only the first such signal.
//
// Deduplicator is not safe for concurrent use, it is intended to be driven
// from a single (event loop) goroutine.
type Deduplicator struct {
	logger    *logiface.Logger[logiface.Event]
	fired     map[DocumentID]struct{}
	callbacks []ReadyFunc
}

// NewDeduplicator returns a Deduplicator with no registered callbacks.
func NewDeduplicator(logger *logiface.Logger[logiface.Event]) *Deduplicator {
	return &Deduplicator{
		logger: logger,
		fired:  make(map[DocumentID]struct{}),
	}
}

// Register appends fn to the ordered list of ready callbacks. Identical
// callbacks are not deduplicated, and there is no way to unregister.
//
// A registration only applies to ready events fired after it.
func (x *Deduplicator) Register(fn ReadyFunc) error {
	if fn == nil {
		return ErrNilFunc
	}
	x.callbacks = append(x.callbacks, fn)
	return nil
}

// Len returns the number of registered callbacks.
func (x *Deduplicator) Len() int {
	return len(x.callbacks)
}

// Fired reports whether the ready event has fired for id.
func (x *Deduplicator) Fired(id DocumentID) bool {
	_, ok := x.fired[id]
	return ok
}

// Release forgets the fired marker for id. The host should only call this
// once the document has been discarded, as any further raw signal for the
// same id would fire again.
func (x *Deduplicator) Release(id DocumentID) {
	delete(x.fired, id)
}

// HandleRawSignal consumes one raw signal occurrence, returning true if it
// fired the ready event.
func (x *Deduplicator) HandleRawSignal(doc Document, ev RawEvent) bool {
	if doc == nil {
		return false
	}

	id := doc.ID()

	if _, ok := x.fired[id]; ok {
		return false
	}

	if ev.Target == `` {
		x.logger.Debug().
			Uint64(`doc`, uint64(id)).
			Log(`raw load signal has no target`)
		return false
	}

	frame := doc.TopFrame()
	if frame == nil || ev.Target != frame.Location() {
		return false
	}

	// marker first, so re-entrant delivery (e.g. from a callback) is a no-op
	x.fired[id] = struct{}{}

	callbacks := x.callbacks[:len(x.callbacks):len(x.callbacks)]
	for i, fn := range callbacks {
		if err := callReady(fn, doc); err != nil {
			x.logger.Err().
				Err(err).
				Uint64(`doc`, uint64(id)).
				Int(`callback`, i).
				Log(`dom-content-loaded callback failed`)
		}
	}

	return true
}

func callReady(fn ReadyFunc, doc Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return fn(doc)
}

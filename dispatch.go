package siteinit

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

type (
	// Scheduler runs tasks on the goroutine that owns documents and
	// registries, typically an event loop.
	Scheduler interface {
		Submit(task func()) error
	}

	// SchedulerFunc implements [Scheduler].
	SchedulerFunc func(task func()) error

	// DispatcherConfig models the dependencies of a [Dispatcher].
	DispatcherConfig struct {
		// Context bounds script reads. Defaults to context.Background().
		Context context.Context

		// Logger receives diagnostics. Optional.
		Logger *logiface.Logger[logiface.Event]

		// Limiter rate limits invalid variable diagnostics, per provider and
		// name. Optional.
		Limiter *catrate.Limiter

		Index     *SiteIndex
		Providers *Providers
		Evaluator *Evaluator
		Reader    TextReader
		Scheduler Scheduler
	}

	// Dispatcher injects matching site scripts into documents, as they become
	// ready. Register [Dispatcher.Ready] with a [Deduplicator].
	Dispatcher struct {
		ctx       context.Context
		logger    *logiface.Logger[logiface.Event]
		limiter   *catrate.Limiter
		index     *SiteIndex
		providers *Providers
		evaluator *Evaluator
		reader    TextReader
		scheduler Scheduler
		inflight  sync.WaitGroup
		stopped   atomic.Bool
	}

	invalidVariable struct {
		provider string
		name     string
	}
)

func (x SchedulerFunc) Submit(task func()) error { return x(task) }

// NewDispatcher validates config, and returns a new Dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	switch {
	case config.Index == nil:
		return nil, errors.New("siteinit: dispatcher requires an index")
	case config.Providers == nil:
		return nil, errors.New("siteinit: dispatcher requires providers")
	case config.Evaluator == nil:
		return nil, errors.New("siteinit: dispatcher requires an evaluator")
	case config.Reader == nil:
		return nil, errors.New("siteinit: dispatcher requires a reader")
	case config.Scheduler == nil:
		return nil, errors.New("siteinit: dispatcher requires a scheduler")
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &Dispatcher{
		ctx:       config.Context,
		logger:    config.Logger,
		limiter:   config.Limiter,
		index:     config.Index,
		providers: config.Providers,
		evaluator: config.Evaluator,
		reader:    config.Reader,
		scheduler: config.Scheduler,
	}, nil
}

// Ready starts reading every site script matching doc's host. Each script
// is evaluated, once read, via the scheduler. It implements [ReadyFunc].
//
// Scripts are re-read and re-evaluated on every call. Reads may complete in
// any order. Once stopped, Ready does nothing.
func (x *Dispatcher) Ready(doc Document) error {
	if doc == nil {
		return ErrNilDocument
	}
	if x.stopped.Load() {
		x.logger.Debug().
			Uint64(`doc`, uint64(doc.ID())).
			Log(`dispatcher stopped, ignoring ready document`)
		return nil
	}
	uri := doc.URI()
	if uri == nil {
		return nil
	}
	for entry := range x.index.Matches(uri.Hostname()) {
		x.dispatch(doc, entry)
	}
	return nil
}

// Stop prevents further calls to Ready from starting reads. Reads already
// in flight are unaffected, see [Dispatcher.Wait].
//
// Calling Stop on the scheduler's goroutine orders it after any Ready call
// made there, which is required before a final Wait.
func (x *Dispatcher) Stop() {
	x.stopped.Store(true)
}

// Wait blocks until all in-flight reads have completed, and their
// evaluations have been submitted. It must not be called from the
// scheduler's goroutine.
func (x *Dispatcher) Wait() {
	x.inflight.Wait()
}

func (x *Dispatcher) dispatch(doc Document, entry SiteEntry) {
	x.inflight.Add(1)
	go func() {
		defer x.inflight.Done()

		text, err := x.reader.ReadText(x.ctx, entry.Handle)
		if err != nil {
			x.logger.Debug().
				Err(err).
				Str(`site`, entry.Handle.String()).
				Log(`failed to read site file`)
			return
		}

		if err := x.scheduler.Submit(func() { x.evaluate(doc, entry, text) }); err != nil {
			x.logger.Debug().
				Err(err).
				Str(`site`, entry.Handle.String()).
				Log(`failed to schedule site file`)
		}
	}()
}

func (x *Dispatcher) evaluate(doc Document, entry SiteEntry, text string) {
	scope := x.Scope(doc)
	if err := x.evaluator.Evaluate(doc.Runtime(), entry.Handle.String(), text, scope); err != nil {
		x.logger.Err().
			Err(err).
			Uint64(`doc`, uint64(doc.ID())).
			Str(`site`, entry.Handle.String()).
			Log(`error evaluating site file`)
	}
}

// Scope assembles the bindings for one evaluation within doc: the document
// handle, the rendering context handle, and every provider variable with a
// valid name. Invalid names are dropped, and logged.
func (x *Dispatcher) Scope(doc Document) Scope {
	scope := Scope{BufferBinding: doc.Object()}
	if frame := doc.TopFrame(); frame != nil {
		scope[WindowBinding] = frame.Object()
	}
	vars, origin := x.providers.collect(doc)
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		if err := CheckIdentifier(name); err != nil {
			x.rejectVariable(Variable{Provider: origin[name], Name: name, Value: vars[name]}, err)
			continue
		}
		scope[name] = vars[name]
	}
	return scope
}

// rejectVariable logs v as dropped. Repeats within the limiter's window are
// logged at debug level.
func (x *Dispatcher) rejectVariable(v Variable, err error) {
	level := logiface.LevelWarning
	if _, ok := x.limiter.Allow(invalidVariable{provider: v.Provider, name: v.Name}); !ok {
		level = logiface.LevelDebug
	}
	x.logger.Build(level).
		Err(err).
		Str(`provider`, v.Provider).
		Str(`name`, v.Name).
		Log(`ignoring invalid site variable`)
}

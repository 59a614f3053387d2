package siteinit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-catrate"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// Instance wires together the ready event deduplication and site script
// dispatch, around a single event loop. Independent instances share no state.
//
// Methods documented as submitting to the loop are safe to call from any
// goroutine. The component accessors (Deduplicator, Providers, Index, etc)
// return values that must only be used on the loop goroutine, or before Run.
type Instance struct {
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *logiface.Logger[logiface.Event]
	loop        *eventloop.Loop
	js          *eventloop.JS
	host        *goja.Runtime
	pageRequire *require.Registry
	dedup       *Deduplicator
	providers   *Providers
	index       *SiteIndex
	evaluator   *Evaluator
	dispatcher  *Dispatcher
	nextID      atomic.Uint64

	// module search path of the host runtime, see Import
	moduleFolders []string
}

// New creates an Instance. The site script dispatcher is registered as the
// first ready callback.
func New(opts ...Option) (*Instance, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, fmt.Errorf("siteinit: failed to create event loop: %w", err)
	}

	js, err := eventloop.NewJS(loop)
	if err != nil {
		_ = loop.Close()
		return nil, fmt.Errorf("siteinit: failed to create JS adapter: %w", err)
	}

	evaluator, err := NewEvaluator(cfg.programCacheSize, cfg.evalTimeout)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	x := &Instance{
		ctx:       ctx,
		cancel:    cancel,
		logger:    cfg.logger,
		loop:      loop,
		js:        js,
		host:      goja.New(),
		dedup:     NewDeduplicator(cfg.logger),
		providers: NewProviders(cfg.logger),
		index:     NewSiteIndex(cfg.logger),
		evaluator: evaluator,
	}

	x.pageRequire = newRequireRegistry(consolePrinter{logger: cfg.logger, source: `page`})

	var limiter *catrate.Limiter
	if cfg.diagnosticInterval > 0 {
		limiter = catrate.NewLimiter(map[time.Duration]int{cfg.diagnosticInterval: 1})
	}

	x.dispatcher, err = NewDispatcher(DispatcherConfig{
		Context:   ctx,
		Logger:    cfg.logger,
		Limiter:   limiter,
		Index:     x.index,
		Providers: x.providers,
		Evaluator: evaluator,
		Reader:    cfg.reader,
		Scheduler: SchedulerFunc(x.Submit),
	})
	if err != nil {
		cancel()
		_ = loop.Close()
		return nil, err
	}

	if err := x.dedup.Register(x.dispatcher.Ready); err != nil {
		cancel()
		_ = loop.Close()
		return nil, err
	}

	x.enableHostRequire(nil)
	x.bindHost()

	return x, nil
}

// Run runs the event loop, blocking until it stops.
func (x *Instance) Run(ctx context.Context) error {
	return x.loop.Run(ctx)
}

// Shutdown stops dispatching site scripts, waits for in-flight script reads,
// then gracefully stops the event loop, running any queued work. Reads still
// pending when ctx is done are abandoned.
//
// The loop must be running, see [Instance.Run].
func (x *Instance) Shutdown(ctx context.Context) error {
	// stopping on the loop orders it after every prior ready dispatch
	if err := x.Await(ctx, x.dispatcher.Stop); err != nil {
		x.dispatcher.Stop()
	} else {
		done := make(chan struct{})
		go func() {
			x.dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	x.cancel()
	return x.loop.Shutdown(ctx)
}

// Submit runs task on the event loop.
func (x *Instance) Submit(task func()) error {
	return x.loop.Submit(task)
}

// Await submits fn to the event loop, and waits for it to complete.
func (x *Instance) Await(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := x.loop.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeliverLoad submits one raw load signal for doc to the event loop.
func (x *Instance) DeliverLoad(doc Document, ev RawEvent) error {
	if doc == nil {
		return ErrNilDocument
	}
	return x.loop.Submit(func() { x.dedup.HandleRawSignal(doc, ev) })
}

// ReloadSites submits a rebuild of the site index to the event loop. This is
// the "reload-sites" command.
func (x *Instance) ReloadSites() error {
	return x.loop.Submit(func() { x.index.Rebuild() })
}

// RegisterProvider submits a provider registration to the event loop.
func (x *Instance) RegisterProvider(name string, fn Provider) error {
	if fn == nil {
		return ErrNilFunc
	}
	return x.loop.Submit(func() { _ = x.providers.Register(name, fn) })
}

// RegisterReady submits a ready callback registration to the event loop.
func (x *Instance) RegisterReady(fn ReadyFunc) error {
	if fn == nil {
		return ErrNilFunc
	}
	return x.loop.Submit(func() { _ = x.dedup.Register(fn) })
}

func (x *Instance) releasePage(id DocumentID) {
	x.dedup.Release(id)
}

func (x *Instance) Logger() *logiface.Logger[logiface.Event] { return x.logger }

func (x *Instance) Loop() *eventloop.Loop { return x.loop }

// Host returns the host (application) runtime, where packages are loaded.
func (x *Instance) Host() *goja.Runtime { return x.host }

func (x *Instance) Deduplicator() *Deduplicator { return x.dedup }

func (x *Instance) Providers() *Providers { return x.providers }

func (x *Instance) Index() *SiteIndex { return x.index }

func (x *Instance) Evaluator() *Evaluator { return x.evaluator }

func (x *Instance) Dispatcher() *Dispatcher { return x.dispatcher }

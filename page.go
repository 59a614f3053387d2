package siteinit

import (
	"fmt"
	"net/url"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

type (
	// Page is a minimal [Document]: one navigation, with its own goja runtime
	// as the evaluation context. The runtime's global object is the
	// rendering context ("window"), and timers run on the instance's event
	// loop.
	//
	// Pages must only be used from the event loop goroutine, with the
	// exception of the read-only accessors ID, URI and TopFrame.
	Page struct {
		uri      *url.URL
		rt       *goja.Runtime
		object   *goja.Object
		release  func(DocumentID)
		location string
		id       DocumentID
		closed   bool
	}

	pageFrame struct {
		page *Page
	}
)

var (
	// compile time assertions

	_ Document = (*Page)(nil)
	_ Frame    = pageFrame{}
)

// NewPage creates a [Page] for rawURL, with a fresh [DocumentID]. It doesn't
// deliver any load signal.
func (x *Instance) NewPage(rawURL string) (*Page, error) {
	uri, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("siteinit: invalid page url: %w", err)
	}

	page := &Page{
		id:       DocumentID(x.nextID.Add(1)),
		uri:      uri,
		location: uri.String(),
		rt:       goja.New(),
		release:  x.releasePage,
	}

	x.pageRequire.Enable(page.rt)
	console.Enable(page.rt)
	bindTimers(page.rt, x.js, x.logger)

	page.object = page.rt.NewObject()
	_ = page.object.Set(`id`, uint64(page.id))
	_ = page.object.Set(`uri`, page.location)
	_ = page.object.Set(`host`, NormalizeHost(uri.Hostname()))

	return page, nil
}

func (x *Page) ID() DocumentID { return x.id }

func (x *Page) URI() *url.URL { return x.uri }

func (x *Page) TopFrame() Frame { return pageFrame{page: x} }

func (x *Page) Runtime() *goja.Runtime { return x.rt }

func (x *Page) Object() any { return x.object }

// Close discards the page, releasing its ready marker. Timers that are
// already scheduled still run.
func (x *Page) Close() {
	if x.closed {
		return
	}
	x.closed = true
	if x.release != nil {
		x.release(x.id)
	}
}

func (x pageFrame) Location() string { return x.page.location }

func (x pageFrame) Object() any { return x.page.rt.GlobalObject() }

// bindTimers exposes setTimeout, clearTimeout and queueMicrotask on rt, backed
// by the event loop.
func bindTimers(rt *goja.Runtime, js *eventloop.JS, logger *logiface.Logger[logiface.Event]) {
	call := func(fn goja.Callable, args []goja.Value) {
		if _, err := fn(goja.Undefined(), args...); err != nil {
			logger.Err().
				Err(err).
				Log(`timer callback failed`)
		}
	}

	_ = rt.Set(`setTimeout`, func(c goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(c.Argument(0))
		if !ok {
			panic(rt.NewTypeError("setTimeout requires a function as first argument"))
		}
		delay := int(c.Argument(1).ToInteger())
		if delay < 0 {
			delay = 0
		}
		var args []goja.Value
		if len(c.Arguments) > 2 {
			args = append(args, c.Arguments[2:]...)
		}
		id, err := js.SetTimeout(func() { call(fn, args) }, delay)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return rt.ToValue(id)
	})

	_ = rt.Set(`clearTimeout`, func(c goja.FunctionCall) goja.Value {
		if id := c.Argument(0).ToInteger(); id > 0 {
			_ = js.ClearTimeout(uint64(id))
		}
		return goja.Undefined()
	})

	_ = rt.Set(`queueMicrotask`, func(c goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(c.Argument(0))
		if !ok {
			panic(rt.NewTypeError("queueMicrotask requires a function as first argument"))
		}
		if err := js.QueueMicrotask(func() { call(fn, nil) }); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})
}

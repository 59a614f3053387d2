package siteinit

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/logiface"
)

// consolePrinter routes console output from a runtime to the logger.
type consolePrinter struct {
	logger *logiface.Logger[logiface.Event]
	source string
}

var _ console.Printer = consolePrinter{}

func (x consolePrinter) Log(s string) {
	x.logger.Info().Str(`console`, x.source).Log(s)
}

func (x consolePrinter) Warn(s string) {
	x.logger.Warning().Str(`console`, x.source).Log(s)
}

func (x consolePrinter) Error(s string) {
	x.logger.Err().Str(`console`, x.source).Log(s)
}

func newRequireRegistry(printer console.Printer, opts ...require.Option) *require.Registry {
	registry := require.NewRegistry(opts...)
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer))
	return registry
}

// enableHostRequire (re)binds require and console on the host runtime, with
// the given module search path.
func (x *Instance) enableHostRequire(folders []string) *require.RequireModule {
	registry := newRequireRegistry(
		consolePrinter{logger: x.logger, source: `host`},
		require.WithGlobalFolders(folders...),
	)
	req := registry.Enable(x.host)
	console.Enable(x.host)
	return req
}

// bindHost exposes the configuration API to scripts loaded into the host
// runtime.
func (x *Instance) bindHost() {
	rt := x.host

	_ = rt.Set(`register_site_variables`, func(c goja.FunctionCall) goja.Value {
		name := c.Argument(0).String()
		fn, ok := goja.AssertFunction(c.Argument(1))
		if !ok {
			panic(rt.NewTypeError("register_site_variables requires a function as second argument"))
		}
		if err := x.providers.Register(name, x.jsProvider(name, fn)); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})

	_ = rt.Set(`add_dom_content_loaded_hook`, func(c goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(c.Argument(0))
		if !ok {
			panic(rt.NewTypeError("add_dom_content_loaded_hook requires a function"))
		}
		if err := x.dedup.Register(func(doc Document) error {
			_, err := fn(goja.Undefined(), x.documentView(doc))
			return err
		}); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})

	_ = rt.Set(`dumpln`, func(msg string) {
		x.logger.Info().Str(`console`, `dumpln`).Log(msg)
	})
}

// documentView describes doc to host runtime code. Host code can't touch
// the document's own runtime values directly.
func (x *Instance) documentView(doc Document) goja.Value {
	obj := x.host.NewObject()
	_ = obj.Set(`id`, uint64(doc.ID()))
	if uri := doc.URI(); uri != nil {
		_ = obj.Set(`uri`, uri.String())
		_ = obj.Set(`host`, NormalizeHost(uri.Hostname()))
	}
	if frame := doc.TopFrame(); frame != nil {
		_ = obj.Set(`location`, frame.Location())
	}
	return obj
}

// jsProvider adapts a provider function registered from the host runtime.
// Only data crosses into documents: function valued variables are dropped.
func (x *Instance) jsProvider(name string, fn goja.Callable) Provider {
	return func(doc Document) (map[string]any, error) {
		v, err := fn(goja.Undefined(), x.documentView(doc))
		if err != nil {
			return nil, err
		}
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, nil
		}
		obj := v.ToObject(x.host)
		vars := make(map[string]any)
		for _, k := range obj.Keys() {
			pv := obj.Get(k)
			if _, ok := goja.AssertFunction(pv); ok {
				x.logger.Warning().
					Str(`provider`, name).
					Str(`name`, k).
					Log(`ignoring function site variable`)
				continue
			}
			vars[k] = pv.Export()
		}
		return vars, nil
	}
}

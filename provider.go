package siteinit

import (
	"maps"
	"slices"

	"github.com/joeycumines/logiface"
)

type (
	// Provider produces variables to expose to site scripts evaluated in
	// doc. Keys are variable names, see [CheckIdentifier].
	Provider func(doc Document) (map[string]any, error)

	// Variable is a single named value produced by a [Provider].
	Variable struct {
		Value    any
		Provider string
		Name     string
	}

	// Providers is the registry of named [Provider] functions.
	//
	// Providers is not safe for concurrent use.
	Providers struct {
		logger  *logiface.Logger[logiface.Event]
		index   map[string]int
		entries []providerEntry
	}

	providerEntry struct {
		fn   Provider
		name string
	}
)

// NewProviders returns an empty provider registry.
func NewProviders(logger *logiface.Logger[logiface.Event]) *Providers {
	return &Providers{
		logger: logger,
		index:  make(map[string]int),
	}
}

// Register adds fn under name. Registering an existing name replaces the
// earlier producer, which keeps its original position.
func (x *Providers) Register(name string, fn Provider) error {
	if fn == nil {
		return ErrNilFunc
	}
	if i, ok := x.index[name]; ok {
		x.entries[i].fn = fn
		return nil
	}
	x.index[name] = len(x.entries)
	x.entries = append(x.entries, providerEntry{name: name, fn: fn})
	return nil
}

// Names returns the registered provider names, in iteration order.
func (x *Providers) Names() []string {
	names := make([]string, len(x.entries))
	for i, e := range x.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered providers.
func (x *Providers) Len() int {
	return len(x.entries)
}

// Produce invokes every provider with doc, in registration order, returning
// all produced variables, including duplicates. Within a single provider,
// variables are ordered by name.
//
// A provider that fails is logged and contributes nothing.
func (x *Providers) Produce(doc Document) []Variable {
	var vars []Variable
	for _, e := range x.entries {
		m, err := callProvider(e.fn, doc)
		if err != nil {
			x.logger.Err().
				Err(err).
				Str(`provider`, e.name).
				Log(`site variable provider failed`)
			continue
		}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			vars = append(vars, Variable{Provider: e.name, Name: k, Value: m[k]})
		}
	}
	return vars
}

// Collect merges the output of every provider into a single mapping. On key
// collision, the provider later in iteration order wins.
func (x *Providers) Collect(doc Document) map[string]any {
	vars, _ := x.collect(doc)
	return vars
}

// collect is [Providers.Collect], also returning the name of the provider
// that supplied each variable.
func (x *Providers) collect(doc Document) (vars map[string]any, origin map[string]string) {
	produced := x.Produce(doc)
	vars = make(map[string]any, len(produced))
	origin = make(map[string]string, len(produced))
	for _, v := range produced {
		vars[v.Name] = v.Value
		origin[v.Name] = v.Provider
	}
	return vars, origin
}

func callProvider(fn Provider, doc Document) (m map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, PanicError{Value: r}
		}
	}()
	return fn(doc)
}

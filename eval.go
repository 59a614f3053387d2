package siteinit

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
)

type (
	// Evaluator runs script text inside a goja runtime, with a [Scope]
	// exposed as top-level bindings.
	//
	// Compiled programs are cached by name and content, so unchanged scripts
	// are not re-parsed. The scripts themselves are always re-run.
	Evaluator struct {
		programs *lru.Cache[programKey, *goja.Program]
		timeout  time.Duration
	}

	programKey struct {
		name string
		sum  [sha256.Size]byte
	}
)

// NewEvaluator returns an Evaluator retaining up to cacheSize compiled
// programs. A positive timeout interrupts long-running evaluations.
func NewEvaluator(cacheSize int, timeout time.Duration) (*Evaluator, error) {
	programs, err := lru.New[programKey, *goja.Program](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("siteinit: failed to create program cache: %w", err)
	}
	return &Evaluator{programs: programs, timeout: timeout}, nil
}

// Compile returns the compiled program for text. Scripts are compiled in
// sloppy mode, so that top-level declarations become globals of the
// runtime they are run in.
func (x *Evaluator) Compile(name, text string) (*goja.Program, error) {
	key := programKey{name: name, sum: sha256.Sum256([]byte(text))}
	if prg, ok := x.programs.Get(key); ok {
		return prg, nil
	}
	prg, err := goja.Compile(name, text, false)
	if err != nil {
		return nil, err
	}
	x.programs.Add(key, prg)
	return prg, nil
}

// Evaluate binds every scope entry as a top-level variable of rt, then runs
// text. Once the script returns, each binding is reverted to the global it
// replaced, or deleted if there was none. Closures that need a bound value
// after evaluation must copy it.
//
// Must be called on the goroutine that owns rt.
func (x *Evaluator) Evaluate(rt *goja.Runtime, name, text string, scope Scope) (err error) {
	if rt == nil {
		return ErrNoRuntime
	}

	prg, err := x.Compile(name, text)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()

	global := rt.GlobalObject()
	shadowed := make([]shadowedGlobal, 0, len(scope))
	defer func() {
		for i := len(shadowed) - 1; i >= 0; i-- {
			shadowed[i].restore(global)
		}
	}()
	for k, v := range scope {
		shadowed = append(shadowed, shadowedGlobal{name: k, value: global.Get(k)})
		if err := rt.Set(k, v); err != nil {
			return fmt.Errorf("siteinit: failed to bind %q: %w", k, err)
		}
	}

	if x.timeout > 0 {
		stop := x.interruptAfter(rt)
		defer stop()
	}

	if _, err := rt.RunProgram(prg); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return fmt.Errorf("%w after %s", ErrEvalTimeout, x.timeout)
		}
		return err
	}

	return nil
}

// interruptAfter arms the evaluation timeout for rt. The returned func
// disarms it, and clears any interrupt. A timer firing concurrently with
// stop never interrupts rt after stop returns.
func (x *Evaluator) interruptAfter(rt *goja.Runtime) (stop func()) {
	var (
		mu      sync.Mutex
		stopped bool
	)
	timer := time.AfterFunc(x.timeout, func() {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			rt.Interrupt(ErrEvalTimeout)
		}
	})
	return func() {
		timer.Stop()
		mu.Lock()
		stopped = true
		mu.Unlock()
		rt.ClearInterrupt()
	}
}

// shadowedGlobal records a global property replaced by a scope binding. A
// nil value means the property did not exist.
type shadowedGlobal struct {
	name  string
	value goja.Value
}

func (x shadowedGlobal) restore(global *goja.Object) {
	if x.value == nil {
		_ = global.Delete(x.name)
		return
	}
	_ = global.Set(x.name, x.value)
}

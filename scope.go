package siteinit

import (
	"fmt"
	"regexp"
)

const (
	// BufferBinding is the scope name of the document handle.
	BufferBinding = `buffer`

	// WindowBinding is the scope name of the rendering context handle.
	WindowBinding = `window`
)

// Scope is the set of top-level bindings made visible to one evaluation of a
// site script.
type Scope map[string]any

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

	// names that can't be rebound as plain top-level variables
	reservedNames = map[string]struct{}{
		BufferBinding: {}, WindowBinding: {},
		`arguments`: {}, `await`: {}, `break`: {}, `case`: {}, `catch`: {},
		`class`: {}, `const`: {}, `continue`: {}, `debugger`: {},
		`default`: {}, `delete`: {}, `do`: {}, `else`: {}, `enum`: {},
		`eval`: {}, `export`: {}, `extends`: {}, `false`: {}, `finally`: {},
		`for`: {}, `function`: {}, `if`: {}, `implements`: {}, `import`: {},
		`in`: {}, `instanceof`: {}, `interface`: {}, `let`: {}, `new`: {},
		`null`: {}, `package`: {}, `private`: {}, `protected`: {},
		`public`: {}, `return`: {}, `static`: {}, `super`: {}, `switch`: {},
		`this`: {}, `throw`: {}, `true`: {}, `try`: {}, `typeof`: {},
		`var`: {}, `void`: {}, `while`: {}, `with`: {}, `yield`: {},
		`undefined`: {}, `NaN`: {}, `Infinity`: {},
	}
)

// CheckIdentifier returns an error wrapping [ErrInvalidName] unless name may
// be bound in a [Scope]: word characters (or $) only, not starting with a
// digit, and not reserved.
func CheckIdentifier(name string) error {
	switch {
	case !identifierPattern.MatchString(name):
		return fmt.Errorf("%w: %q contains non-word characters", ErrInvalidName, name)
	case name[0] >= '0' && name[0] <= '9':
		return fmt.Errorf("%w: %q starts with a digit", ErrInvalidName, name)
	}
	if _, ok := reservedNames[name]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

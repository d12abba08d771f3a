// internal/lifecycle/arity.go

package lifecycle

import "fmt"

// Arity constrains how many children a render node may have.
type Arity int

const (
	Variable Arity = iota // any number of children
	Leaf                  // no children
	Single                // exactly one child
	Optional              // zero or one child
)

func (a Arity) String() string {
	switch a {
	case Variable:
		return "Variable"
	case Leaf:
		return "Leaf"
	case Single:
		return "Single"
	case Optional:
		return "Optional"
	default:
		return "Unknown"
	}
}

// Valid reports whether a is a known arity.
func (a Arity) Valid() bool {
	return a >= Variable && a <= Optional
}

// Check returns an error when n children violate the arity.
func (a Arity) Check(n int) error {
	ok := true
	switch a {
	case Variable:
		ok = n >= 0
	case Leaf:
		ok = n == 0
	case Single:
		ok = n == 1
	case Optional:
		ok = n == 0 || n == 1
	default:
		return fmt.Errorf("unknown arity %d", int(a))
	}
	if !ok {
		return fmt.Errorf("arity %s does not allow %d children", a, n)
	}
	return nil
}

// Protocol selects which layout protocol a render node speaks.
type Protocol int

const (
	Box Protocol = iota
	Sliver
)

func (p Protocol) String() string {
	switch p {
	case Box:
		return "Box"
	case Sliver:
		return "Sliver"
	default:
		return "Unknown"
	}
}

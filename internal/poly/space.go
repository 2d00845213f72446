package poly

import (
	"strconv"
	"strings"
)

// Space identifies a statement tuple and names its dimensions.
//
// A Space with an empty tuple name is an anonymous space, used for
// schedule images where instances of several statements share one
// coordinate system.
type Space struct {
	tuple string
	dims  []string
}

// NewSpace creates a space for the named tuple with the given dimension
// names.
func NewSpace(tuple string, dims ...string) Space {
	d := make([]string, len(dims))
	copy(d, dims)
	return Space{tuple: tuple, dims: d}
}

// AnonSpace creates an anonymous space of dimension n. Dimension names
// are synthesized as o0, o1, ... so bounds can still be printed.
func AnonSpace(n int) Space {
	d := make([]string, n)
	for i := range d {
		d[i] = "o" + strconv.Itoa(i)
	}
	return Space{dims: d}
}

// Tuple returns the tuple name, which is empty for anonymous spaces.
func (s Space) Tuple() string { return s.tuple }

// NDim returns the number of dimensions.
func (s Space) NDim() int { return len(s.dims) }

// DimName returns the name of dimension i.
func (s Space) DimName(i int) string { return s.dims[i] }

// DimNames returns a copy of all dimension names.
func (s Space) DimNames() []string {
	d := make([]string, len(s.dims))
	copy(d, s.dims)
	return d
}

// Equal reports whether two spaces have the same tuple name and arity.
// Dimension names are display metadata and do not affect identity.
func (s Space) Equal(o Space) bool {
	return s.tuple == o.tuple && len(s.dims) == len(o.dims)
}

func (s Space) String() string {
	return s.tuple + "[" + strings.Join(s.dims, ",") + "]"
}

package adslot

import "fmt"

// Size is a creative size in density independent pixels.
type Size struct {
	Width  uint
	Height uint
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SizeSet is an insertion ordered set of sizes; adding a size twice keeps the first position.
type SizeSet struct {
	sizes []Size
}

// NewSizeSet builds a set from sizes, collapsing duplicates.
func NewSizeSet(sizes ...Size) SizeSet {
	var set SizeSet
	for _, s := range sizes {
		set.Add(s)
	}
	return set
}

func (s *SizeSet) Add(size Size) {
	if s.Contains(size) {
		return
	}
	s.sizes = append(s.sizes, size)
}

func (s SizeSet) Contains(size Size) bool {
	for _, existing := range s.sizes {
		if existing == size {
			return true
		}
	}
	return false
}

// Slice returns a copy of the sizes in insertion order.
func (s SizeSet) Slice() []Size {
	return append([]Size(nil), s.sizes...)
}

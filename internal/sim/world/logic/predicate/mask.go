package predicate

import "fmt"

// Mask marks predicate positions as hidden: bit i set hides field i.
type Mask uint16

func (m Mask) Hidden(i int) bool {
	if i < 0 || i >= MaxFields {
		return false
	}
	return m&(1<<uint(i)) != 0
}

func (m Mask) Hide(i int) Mask {
	if i < 0 || i >= MaxFields {
		return m
	}
	return m | (1 << uint(i))
}

// Intersect keeps a field hidden only if both masks hide it.
func (m Mask) Intersect(o Mask) Mask { return m & o }

// Union hides a field if either mask hides it.
func (m Mask) Union(o Mask) Mask { return m | o }

// Covers reports whether m hides at least every field o hides.
func (m Mask) Covers(o Mask) bool { return m&o == o }

// Clamp drops bits beyond the shape's arity.
func (m Mask) Clamp(s Shape) Mask { return m & FullMask(s) }

// FullMask hides every field of the shape.
func FullMask(s Shape) Mask {
	n := s.Arity()
	if n <= 0 {
		return 0
	}
	return Mask(uint32(1)<<uint(n) - 1)
}

// MaskOf builds a mask hiding the named fields of a shape.
func MaskOf(s Shape, names ...string) (Mask, error) {
	var m Mask
	for _, name := range names {
		i, ok := s.FieldIndex(name)
		if !ok {
			return 0, fmt.Errorf("%s has no field %q", s, name)
		}
		m = m.Hide(i)
	}
	return m, nil
}

// Names lists the hidden field names in declaration order.
func (m Mask) Names(s Shape) []string {
	var out []string
	for i, f := range s.Fields() {
		if m.Hidden(i) {
			out = append(out, f.Name)
		}
	}
	return out
}

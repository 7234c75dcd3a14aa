package predicate

// Relation is the outcome of comparing two (masked) predicates.
type Relation uint8

const (
	RelError Relation = iota
	RelEqual
	RelNotEqual
	RelSubset
	RelSuperset
)

func (r Relation) String() string {
	switch r {
	case RelEqual:
		return "equal"
	case RelNotEqual:
		return "not-equal"
	case RelSubset:
		return "subset"
	case RelSuperset:
		return "superset"
	default:
		return "error"
	}
}

// Compare places a against b field by field. Positions visible on both sides
// must be structurally equal or the result is not-equal. Otherwise a side
// that sees strictly more positions is the superset of the other; if each side
// sees something the other does not, they are not comparable (not-equal).
func Compare(a Predicate, ma Mask, b Predicate, mb Mask) Relation {
	if !a.Valid() || !b.Valid() {
		return RelError
	}
	if a.Shape != b.Shape {
		return RelNotEqual
	}
	aOnly, bOnly := 0, 0
	for i := range a.Terms {
		av := a.visible(i, ma)
		bv := b.visible(i, mb)
		switch {
		case av && bv:
			if !a.Terms[i].Equal(b.Terms[i]) {
				return RelNotEqual
			}
		case av:
			aOnly++
		case bv:
			bOnly++
		}
	}
	switch {
	case aOnly == 0 && bOnly == 0:
		return RelEqual
	case bOnly == 0:
		return RelSuperset
	case aOnly == 0:
		return RelSubset
	default:
		return RelNotEqual
	}
}

// Answers reports whether a (viewed through ma) is a genuine answer to the
// question q (viewed through mq): it must agree on everything the question
// states.
func Answers(a Predicate, ma Mask, q Predicate, mq Mask) bool {
	switch Compare(a, ma, q, mq) {
	case RelEqual, RelSuperset:
		return true
	default:
		return false
	}
}

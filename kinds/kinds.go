package kinds

const (
	length   = 64
	idLength = 8
	depthMax = length / idLength
	idMask   = (1 << idLength) - 1
)

// Kind packs id together with the ids of every base, so a kind remembers
// its whole ancestry in a single uint64.
func Kind(id uint64, bases ...uint64) uint64 {
	id = id & idMask
	ids := make(map[uint64]struct{})

	for _, base := range bases {
		for j := 0; j < depthMax; j++ {
			baseId := (base >> (idLength * j)) & idMask
			if baseId == 0 {
				break
			}
			if _, ok := ids[baseId]; !ok {
				ids[baseId] = struct{}{}
				id |= baseId << (idLength * len(ids))
			}
		}
	}
	return id
}

// IsKind reports whether kind is, or derives from, any of bases.
func IsKind(kind uint64, bases ...uint64) bool {
	for _, base := range bases {
		baseId := base & idMask
		if kind == baseId {
			return true
		}
		for i := 0; i < depthMax; i++ {
			currentId := (kind >> (idLength * i)) & idMask
			if currentId == baseId {
				return true
			}
		}
	}
	return false
}

var (
	Null        = Kind(0)
	Element     = Kind(1)
	Vertex      = Kind(2, Element)
	Constraint  = Kind(3, Element)
	Behavior    = Kind(4, Element)
	State       = Kind(5, Vertex)
	Transition  = Kind(6, Element)
	Internal    = Kind(7, Transition)
	External    = Kind(8, Transition)
	Local       = Kind(9, Transition)
	Self        = Kind(10, Transition)
	Event       = Kind(11, Element)
	TimeEvent   = Kind(12, Event)
	Pseudostate = Kind(13, Vertex)
	Initial     = Kind(14, Pseudostate)
)

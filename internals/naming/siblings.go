package naming

import (
	"fmt"
	"strings"
)

// Siblings hands out unique entry names within one archive directory.
// Names are compared case-insensitively so that the archive extracts the
// same way on case-insensitive filesystems. Reserve must be called in child
// order for the naming to be deterministic.
type Siblings struct {
	used map[string]bool
}

func NewSiblings() *Siblings {
	return &Siblings{used: make(map[string]bool)}
}

// Reserve returns entry unchanged when its name and its description sidecar
// are free, otherwise the first free "<base> (n)<suffix>" variant.
func (s *Siblings) Reserve(entry Entry) Entry {
	return s.reserve(entry, true)
}

// ReserveFolder is Reserve for folders. A folder's description is written
// inside the folder, so only the folder name itself is claimed here.
func (s *Siblings) ReserveFolder(entry Entry) Entry {
	return s.reserve(entry, false)
}

func (s *Siblings) reserve(entry Entry, sidecar bool) Entry {
	candidate := entry
	for n := 1; s.taken(candidate, sidecar); n++ {
		candidate = Entry{Base: fmt.Sprintf("%s (%d)", entry.Base, n), Suffix: entry.Suffix}
	}
	s.used[strings.ToLower(candidate.Name())] = true
	if sidecar {
		s.used[strings.ToLower(DescriptionName(candidate))] = true
	}
	return candidate
}

func (s *Siblings) taken(e Entry, sidecar bool) bool {
	if s.used[strings.ToLower(e.Name())] {
		return true
	}
	return sidecar && s.used[strings.ToLower(DescriptionName(e))]
}

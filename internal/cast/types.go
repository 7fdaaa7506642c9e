package cast

import (
	"fmt"
	"sort"
)

// CastType is the member type word. Values without a named constant are kept
// as-is and reported as other(N).
type CastType uint32

const (
	TypeBitmap CastType = 1
	TypeField  CastType = 3
	TypeSound  CastType = 6
	TypeScript CastType = 11
	TypeText   CastType = 12
)

// Known reports whether t is one of the named types.
func (t CastType) Known() bool {
	switch t {
	case TypeBitmap, TypeField, TypeSound, TypeScript, TypeText:
		return true
	}
	return false
}

func (t CastType) String() string {
	switch t {
	case TypeBitmap:
		return "bitmap"
	case TypeField:
		return "field"
	case TypeSound:
		return "sound"
	case TypeScript:
		return "script"
	case TypeText:
		return "text"
	}
	return fmt.Sprintf("other(%d)", uint32(t))
}

// IsText reports whether members of this type carry text payloads.
func (t CastType) IsText() bool { return t == TypeField || t == TypeText }

// DanglingLink is a linked resource that could not be resolved.
type DanglingLink struct {
	ID     uint32 `json:"id"`
	FourCC string `json:"fourcc"`
	Reason string `json:"reason"`
}

// Member is one cast member. Linked holds resolved chunk ids in key-table
// order; every link that failed resolution is listed in Dangling instead.
type Member struct {
	ID       uint32         `json:"id"`
	ChunkID  uint32         `json:"chunk_id"`
	Name     string         `json:"name"`
	Type     CastType       `json:"cast_type"`
	Linked   []uint32       `json:"linked_entries"`
	Dangling []DanglingLink `json:"dangling,omitempty"`
}

// Library is a named group of members keyed by member number.
type Library struct {
	ID      uint32            `json:"id"`
	Name    string            `json:"name"`
	ChunkID uint32            `json:"chunk_id"`
	Members map[uint32]Member `json:"members"`
}

// Sorted returns members in ascending member number order.
func (l Library) Sorted() []Member {
	ids := make([]uint32, 0, len(l.Members))
	for id := range l.Members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.Members[id])
	}
	return out
}

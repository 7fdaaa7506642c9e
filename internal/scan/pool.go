package scan

import (
	"encoding/binary"
	"fmt"

	"cast-extractor/internal/bytecursor"
	"cast-extractor/internal/textutil"
)

// Bounds on the string count read at a candidate header.
const (
	MinPoolCount = 1
	MaxPoolCount = 1000
)

// Strategy is one candidate location for a script string table header,
// relative to the start of the chunk payload.
type Strategy struct {
	Name         string
	HeaderOffset int
}

// PoolStrategies is the ordered list tried by ScriptPool. The first strategy
// that yields a complete table wins.
var PoolStrategies = func() []Strategy {
	offsets := []int{8, 12, 16, 20, 24, 28, 32, 40, 48, 56, 64}
	out := make([]Strategy, len(offsets))
	for i, off := range offsets {
		out[i] = Strategy{Name: fmt.Sprintf("header@%d", off), HeaderOffset: off}
	}
	return out
}()

// Pool is a recovered string table.
type Pool struct {
	Strategy     string            `json:"strategy"`
	HeaderOffset int               `json:"header_offset"`
	Strings      []StringCandidate `json:"strings"`
}

// PoolError explains why a strategy was rejected.
type PoolError struct {
	Strategy string
	Reason   string
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("script pool %s: %s", e.Strategy, e.Reason)
}

// Try applies the strategy to a chunk payload. It is all-or-nothing: either
// every string in the table is accepted or no pool is returned.
func (s Strategy) Try(data []byte, base uint64, order binary.ByteOrder, dec textutil.Decoder) (*Pool, error) {
	fail := func(format string, args ...any) (*Pool, error) {
		return nil, &PoolError{Strategy: s.Name, Reason: fmt.Sprintf(format, args...)}
	}

	c, err := bytecursor.New(data, order).At(s.HeaderOffset)
	if err != nil {
		return fail("header past end of chunk")
	}
	count, err := c.U32()
	if err != nil {
		return fail("count past end of chunk")
	}
	if count < MinPoolCount || count > MaxPoolCount {
		return fail("count %d out of range", count)
	}
	if c.Remaining() < int(count)*4 {
		return fail("offset table of %d entries past end of chunk", count)
	}

	pool := &Pool{Strategy: s.Name, HeaderOffset: s.HeaderOffset, Strings: make([]StringCandidate, 0, count)}
	for i := 0; i < int(count); i++ {
		off, _ := c.U32()
		if uint64(off) >= uint64(len(data)) {
			return fail("string %d offset %d past end of chunk", i, off)
		}
		raw, ok := ReadPascal(data, int(off), 1, textutil.PoolGate)
		if !ok {
			return fail("string %d at %d rejected", i, off)
		}
		pool.Strings = append(pool.Strings, candidate(KindPoolString, base, int(off), raw, dec))
	}
	return pool, nil
}

// ScriptPool runs PoolStrategies in order and returns the first complete
// table together with the rejections that preceded it. A nil pool means the
// chunk could only be analysed raw.
func ScriptPool(data []byte, base uint64, order binary.ByteOrder, dec textutil.Decoder) (*Pool, []error) {
	return ScriptPoolWith(PoolStrategies, data, base, order, dec)
}

// ScriptPoolWith is ScriptPool over an explicit strategy list.
func ScriptPoolWith(strategies []Strategy, data []byte, base uint64, order binary.ByteOrder, dec textutil.Decoder) (*Pool, []error) {
	var rejected []error
	for _, s := range strategies {
		pool, err := s.Try(data, base, order, dec)
		if err == nil {
			return pool, rejected
		}
		rejected = append(rejected, err)
	}
	return nil, rejected
}

package value

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
	"sort"
)

// fnvState wraps the standard library's 64-bit FNV-1a accumulator with
// typed write helpers for folding a Value tree into one digest.
type fnvState struct {
	h hash.Hash64
}

// HashState returns a fresh accumulator for computing a configuration hash.
func HashState() *fnvState {
	return &fnvState{h: fnv.New64a()}
}

func (s *fnvState) writeByte(b byte) { _, _ = s.h.Write([]byte{b}) }
func (s *fnvState) writeString(v string) { _, _ = s.h.Write([]byte(v)) }
func (s *fnvState) writeUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = s.h.Write(buf[:])
}

// Sum64 returns the folded digest.
func (s *fnvState) Sum64() uint64 { return s.h.Sum64() }

// Hash folds v into h deterministically: map keys are visited in sorted
// order regardless of insertion order, so two maps built differently but
// containing the same entries hash identically. This backs the agent's
// scenario configuration hash, letting the coordinator detect a stale
// agent without shipping the full configuration on every poll.
func Hash(h *fnvState, v Value) {
	h.writeByte(byte(v.kind))
	switch v.kind {
	case KindText:
		h.writeString(v.text)
	case KindBool:
		if v.boul {
			h.writeByte(1)
		} else {
			h.writeByte(0)
		}
	case KindUint:
		h.writeUint64(v.uintv)
	case KindInt:
		h.writeUint64(uint64(v.intv))
	case KindFloat:
		h.writeUint64(math.Float64bits(v.fltv))
	case KindObject:
		keys := v.obj.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			h.writeString(k)
			child, _ := v.obj.Get(k)
			Hash(h, child)
		}
	case KindArray:
		for _, e := range v.arr {
			Hash(h, e)
		}
	case KindNull:
		// discriminant byte already written, nothing more to fold in
	}
}

// HashMap hashes an ordered map the same way Hash does for an object Value.
func HashMap(h *fnvState, m *Map) {
	Hash(h, Object(m))
}

package rvalue

import (
	"github.com/dolthub/maphash"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
)

var stringHasher maphash.Hasher[string]

func init() { stringHasher = maphash.NewHasher[string]() }

// RString is the heap-resident string object. Strings compare and hash by
// content, not identity (original_source/src/common/hash_map.hpp's string
// specialization), so two separately-allocated RStrings with the same bytes
// are interchangeable table keys even though they are distinct GC objects.
type RString struct {
	gcheap.Header
	Bytes []byte
	hash  uint64
	once  bool
}

// NewRString allocates a string object. The collector Register call is the
// caller's responsibility (internal/rtable and vm both allocate through the
// shared Collector, not here, so allocation-site accounting stays uniform).
func NewRString(b []byte) *RString {
	s := &RString{Bytes: append([]byte(nil), b...)}
	s.Header.Kind = gcheap.KindString
	return s
}

func (s *RString) String() string { return string(s.Bytes) }

func (s *RString) Len() int { return len(s.Bytes) }

// Hash returns a content hash, memoized after first use. Backed by
// dolthub/maphash (the same hash family dolthub/swiss uses for the table
// hash part) so table probing and Value hashing agree, per SPEC_FULL.md §1.
func (s *RString) Hash() uint64 {
	if !s.once {
		s.hash = stringHasher.Hash(string(s.Bytes))
		s.once = true
	}
	return s.hash
}

// Equal reports byte-for-byte equality against another RString.
func (s *RString) Equal(o *RString) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return string(s.Bytes) == string(o.Bytes)
}

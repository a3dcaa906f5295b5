// Package store provides key deduplication and the SQLite run ledger.
package store

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// KeySet records every key inserted into it and never forgets one. A bloom
// filter screens lookups so that keys never seen skip the map. KeySet is not
// safe for concurrent use.
type KeySet struct {
	keys   map[string]struct{}
	filter *bloom.BloomFilter
}

// NewKeySet sizes the set for about expected keys. Inserting more is allowed;
// the filter then answers "maybe" more often and the map decides.
func NewKeySet(expected int, falsePositiveRate float64) *KeySet {
	if expected < 1 {
		expected = 1
	}
	return &KeySet{
		keys:   make(map[string]struct{}, expected),
		filter: bloom.NewWithEstimates(uint(expected), falsePositiveRate),
	}
}

// Contains reports whether key was inserted.
func (s *KeySet) Contains(key string) bool {
	if !s.filter.TestString(key) {
		return false
	}
	_, ok := s.keys[key]
	return ok
}

// Insert adds key and reports whether it was new.
func (s *KeySet) Insert(key string) bool {
	if s.Contains(key) {
		return false
	}
	s.keys[key] = struct{}{}
	s.filter.AddString(key)
	return true
}

// Len returns the number of distinct keys inserted.
func (s *KeySet) Len() int {
	return len(s.keys)
}

package cdm

import (
	"sort"
	"strings"
)

// Key is a dotted canonical data model key, e.g. "person.first_name" or "account.number".
// The part before the first dot is the namespace.
type Key string

// Namespace returns the part of the key before the first dot ("person", "account", ...).
func (k Key) Namespace() string {
	s := string(k)
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i]
	}
	return s
}

// Store is the subject-scoped Canonical Data Model: an immutable mapping from
// canonical keys to scalar values. It is built once per fill operation and is
// read-only afterwards. An absent key means "no data available", which is
// distinct from a key stored with an empty value.
type Store struct {
	values map[Key]string
}

// NewStore copies values into a fresh store.
func NewStore(values map[Key]string) *Store {
	copied := make(map[Key]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Store{values: copied}
}

// Lookup returns the value for a key and whether the key exists at all.
func (s *Store) Lookup(k Key) (string, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Keys returns every key in the store, sorted for deterministic output.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// AvailableKeys returns the keys that carry a non-empty value. These are the
// only keys the mapper is ever allowed to propose.
func (s *Store) AvailableKeys() []Key {
	keys := make([]Key, 0, len(s.values))
	for k, v := range s.values {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	return len(s.values)
}

// KeysByNamespace groups the given keys by their namespace, with namespaces and
// key lists sorted. Used by the prompt builder to present the key space compactly.
func KeysByNamespace(keys []Key) map[string][]Key {
	grouped := make(map[string][]Key)
	for _, k := range keys {
		ns := k.Namespace()
		grouped[ns] = append(grouped[ns], k)
	}
	for ns := range grouped {
		ks := grouped[ns]
		sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
		grouped[ns] = ks
	}
	return grouped
}

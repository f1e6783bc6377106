package ospf

import (
	"slices"

	"golang.org/x/exp/maps"
)

// lsdb holds one instance per key. Iteration is always in key order so that
// aging and SPF are deterministic.
type lsdb[T LSA] struct {
	lsas map[Key]T
}

func newLSDB[T LSA]() *lsdb[T] {
	return &lsdb[T]{lsas: make(map[Key]T)}
}

func (db *lsdb[T]) get(k Key) (T, bool) {
	lsa, ok := db.lsas[k]
	return lsa, ok
}

func (db *lsdb[T]) set(lsa T) {
	db.lsas[lsa.LSAHeader().Key()] = lsa
}

func (db *lsdb[T]) delete(k Key) {
	delete(db.lsas, k)
}

func (db *lsdb[T]) len() int {
	return len(db.lsas)
}

func (db *lsdb[T]) keys() []Key {
	keys := maps.Keys(db.lsas)
	slices.SortFunc(keys, Key.compare)
	return keys
}

func (db *lsdb[T]) all() []T {
	keys := db.keys()

	lsas := make([]T, len(keys))
	for i, k := range keys {
		lsas[i] = db.lsas[k]
	}

	return lsas
}

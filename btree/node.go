package btree

import "sort"

// search returns the smallest index i such that keys[i] >= key, or
// len(keys) if no such index exists. It is the single descent/insertion
// rule shared by reads, inserts, and deletes, and it must stay consistent
// with the separator convention used by split (see split.go).
func search(keys []uint16, key uint16) int {
	return sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
}

// insertUint16At inserts v at index i in an ascending []uint16, shifting
// the tail right.
func insertUint16At(s []uint16, i int, v uint16) []uint16 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertUint32At(s []uint32, i int, v uint32) []uint32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeUint16At(s []uint16, i int) []uint16 {
	return append(s[:i], s[i+1:]...)
}

func removeUint32At(s []uint32, i int) []uint32 {
	return append(s[:i], s[i+1:]...)
}

// childForKey returns the index into page.Children that must be descended
// into to find key, under the "child i covers keys <= separator_i, child
// i+1 covers keys > separator_i" convention used throughout this package.
func childForKey(page *Page, key uint16) int {
	return search(page.Keys, key)
}

// Package party implements the small party-identifier type shared by every
// protocol layer.
package party

import "sort"

// ID identifies a party within a session. Parties are ordered by their
// string value, which also fixes the local index i used throughout the
// polynomial-evaluation points (i+1).
type ID string

// IDSlice is a sortable, searchable collection of party IDs.
type IDSlice []ID

func (p IDSlice) Len() int           { return len(p) }
func (p IDSlice) Less(i, j int) bool { return p[i] < p[j] }
func (p IDSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Sort returns a sorted copy of the slice.
func (p IDSlice) Sort() IDSlice {
	out := make(IDSlice, len(p))
	copy(out, p)
	sort.Sort(out)
	return out
}

// Contains reports whether id is present.
func (p IDSlice) Contains(id ID) bool {
	for _, q := range p {
		if q == id {
			return true
		}
	}
	return false
}

// Index returns the position of id within a sorted view of p, or -1.
// The position is what feeds the polynomial evaluation point (Index()+1).
func (p IDSlice) Index(id ID) int {
	sorted := p.Sort()
	for i, q := range sorted {
		if q == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of p with id removed.
func (p IDSlice) Without(id ID) IDSlice {
	out := make(IDSlice, 0, len(p))
	for _, q := range p {
		if q != id {
			out = append(out, q)
		}
	}
	return out
}

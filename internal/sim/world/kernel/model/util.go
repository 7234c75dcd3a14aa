package model

import "sort"

func sortStrings(s []string) { sort.Strings(s) }

// Set is a string set with deterministic listing.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := Set{}
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) { s[id] = struct{}{} }

func (s Set) Remove(id string) { delete(s, id) }

func (s Set) Sorted() []string { return sortedKeys(s) }

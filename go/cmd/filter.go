package cmd

import (
	"fmt"
	"path"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/samber/lo"
)

// MatchOnly reports whether name matches any of the glob patterns. An empty
// pattern list matches everything.
func MatchOnly(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	return lo.SomeBy(patterns, func(pat string) bool {
		ok, _ := path.Match(pat, name)
		return ok || pat == name
	})
}

// Select returns the items kept by MatchOnly, naturally sorted by name if
// sorted is set and in their original order otherwise.
func Select[T any](items []T, name func(T) string, patterns []string, sorted bool) []T {
	ret := lo.Filter(items, func(item T, _ int) bool {
		return MatchOnly(patterns, name(item))
	})
	if sorted {
		sort.SliceStable(ret, func(i, j int) bool {
			return sortorder.NaturalLess(name(ret[i]), name(ret[j]))
		})
	}
	return ret
}

// Digest is the xxhash64 of data as fixed-width hex.
func Digest(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

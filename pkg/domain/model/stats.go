package model

import (
	"cmp"
	"slices"
)

// Stats is an aggregate snapshot over non-archived memories.
type Stats struct {
	TotalCount   int
	ByProject    map[string]int
	TopTags      []string
	StorageBytes int64
}

// TopTagLimit is the number of tags reported by Stats.
const TopTagLimit = 10

// TagCounter counts tag occurrences and remembers first-seen order for ties.
type TagCounter struct {
	counts map[string]int
	order  []string
}

func NewTagCounter() *TagCounter {
	return &TagCounter{counts: make(map[string]int)}
}

// Add counts every occurrence of tags.
func (c *TagCounter) Add(tags ...string) {
	for _, tag := range tags {
		if _, seen := c.counts[tag]; !seen {
			c.order = append(c.order, tag)
		}
		c.counts[tag]++
	}
}

// Top returns up to n tags by descending frequency.
func (c *TagCounter) Top(n int) []string {
	ranked := slices.Clone(c.order)
	slices.SortStableFunc(ranked, func(a, b string) int {
		return cmp.Compare(c.counts[b], c.counts[a])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		ranked = []string{}
	}
	return ranked
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/google/uuid"
)

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

func (x MemoryID) String() string {
	return string(x)
}

// Memory is a stored piece of text with its embedding. Records are immutable
// except for the Archived flag.
type Memory struct {
	ID        MemoryID
	Text      string
	TextHash  string    // SHA-256 hex of Text, used for deduplication
	Embedding []float32 // nil until embedded; nil records are never scored
	Project   string    // empty means no project
	Tags      []string
	CreatedAt int64 // Unix seconds
	UpdatedAt int64 // Unix seconds
	Archived  bool
}

// Copy returns a deep copy of m.
func (m *Memory) Copy() *Memory {
	if m == nil {
		return nil
	}
	copied := *m
	if m.Embedding != nil {
		copied.Embedding = slices.Clone(m.Embedding)
	}
	if m.Tags != nil {
		copied.Tags = slices.Clone(m.Tags)
	}
	return &copied
}

// HasAnyTag reports whether m carries at least one of tags. An empty tags list matches everything.
func (m *Memory) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, tag := range tags {
		if slices.Contains(m.Tags, tag) {
			return true
		}
	}
	return false
}

// HashText returns the lowercase hex SHA-256 digest of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ListFilter selects non-archived memories. Tags match when any of them is present.
// Limit and Offset are ignored by Count.
type ListFilter struct {
	Project string
	Tags    []string
	Limit   int
	Offset  int
}

// Match reports whether m satisfies the project and tag conditions of f.
func (f ListFilter) Match(m *Memory) bool {
	if f.Project != "" && m.Project != f.Project {
		return false
	}
	return m.HasAnyTag(f.Tags)
}

// BulkDeleteFilter selects memories for hard deletion regardless of the archived flag.
// Both conditions are optional and combined with AND; an empty filter selects every record.
type BulkDeleteFilter struct {
	Project string
	Before  *int64 // created_at strictly less than this Unix second
}

// Match reports whether m satisfies f.
func (f BulkDeleteFilter) Match(m *Memory) bool {
	if f.Project != "" && m.Project != f.Project {
		return false
	}
	if f.Before != nil && m.CreatedAt >= *f.Before {
		return false
	}
	return true
}

// SearchResult is a memory as presented to callers of search, list and export.
type SearchResult struct {
	ID        MemoryID
	Text      string
	Score     *float64 // nil for date ordered listings
	Project   string
	Tags      []string
	CreatedAt string
}

// NewSearchResult converts m into a result. score may be nil.
func NewSearchResult(m *Memory, score *float64) *SearchResult {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return &SearchResult{
		ID:        m.ID,
		Text:      m.Text,
		Score:     score,
		Project:   m.Project,
		Tags:      tags,
		CreatedAt: FormatTimestamp(m.CreatedAt),
	}
}

// SortOrder is the ordering of ListMemories.
type SortOrder string

const (
	SortByDate      SortOrder = "date"
	SortByRelevance SortOrder = "relevance"
)

// Validate returns ErrValidation for unknown orders. The empty value is accepted as date.
func (x SortOrder) Validate() error {
	switch x {
	case "", SortByDate, SortByRelevance:
		return nil
	default:
		return ErrValidation
	}
}

// ExportFormat is the output format of Export.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "markdown"
)

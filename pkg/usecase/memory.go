package usecase

import (
	"context"
	"math"
	"slices"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const (
	DefaultMaxTextLength       = 10000
	DefaultSearchLimit         = 5
	DefaultSimilarityThreshold = 0.7
	DefaultListLimit           = 20
	// DefaultExportLimit also caps the candidate set of relevance listings.
	DefaultExportLimit = 10000
)

const (
	ReasonCreated   = "created"
	ReasonDuplicate = "duplicate"
)

type MemoryUseCase struct {
	repo       interfaces.Repository
	vectorizer interfaces.Vectorizer

	maxTextLength int
	searchLimit   int
	threshold     float64
	exportLimit   int
	now           func() int64
}

type MemoryOption func(*MemoryUseCase)

func WithMaxTextLength(n int) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.maxTextLength = n
	}
}

func WithDefaultSearchLimit(n int) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.searchLimit = n
	}
}

func WithSimilarityThreshold(threshold float64) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.threshold = threshold
	}
}

func WithExportLimit(n int) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.exportLimit = n
	}
}

// WithClock replaces the source of created_at timestamps (Unix seconds).
func WithClock(now func() int64) MemoryOption {
	return func(uc *MemoryUseCase) {
		uc.now = now
	}
}

func NewMemoryUseCase(repo interfaces.Repository, vectorizer interfaces.Vectorizer, opts ...MemoryOption) *MemoryUseCase {
	uc := &MemoryUseCase{
		repo:          repo,
		vectorizer:    vectorizer,
		maxTextLength: DefaultMaxTextLength,
		searchLimit:   DefaultSearchLimit,
		threshold:     DefaultSimilarityThreshold,
		exportLimit:   DefaultExportLimit,
		now:           model.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// DefaultThreshold returns the configured similarity threshold.
func (uc *MemoryUseCase) DefaultThreshold() float64 {
	return uc.threshold
}

type SaveInput struct {
	Text    string
	Project string
	Tags    []string
}

type SaveResult struct {
	ID        model.MemoryID
	Duplicate bool
	Reason    string
}

// SaveMemory stores text unless an active memory with identical text exists.
func (uc *MemoryUseCase) SaveMemory(ctx context.Context, input SaveInput) (*SaveResult, error) {
	if n := utf8.RuneCountInString(input.Text); n > uc.maxTextLength {
		return nil, goerr.Wrap(ErrTextTooLong, "text exceeds maximum length",
			goerr.V(TextLengthKey, n),
			goerr.V(MaxLengthKey, uc.maxTextLength))
	}

	hash := model.HashText(input.Text)
	existing, err := uc.repo.Memory().GetByHash(ctx, hash)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to look up memory by hash")
	}
	if existing != nil {
		logging.From(ctx).Debug("duplicate memory",
			"id", existing.ID,
			"project", input.Project)
		return &SaveResult{ID: existing.ID, Duplicate: true, Reason: ReasonDuplicate}, nil
	}

	vec, err := uc.vectorizer.Embed(ctx, input.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text")
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := uc.now()
	mem := &model.Memory{
		ID:        model.NewMemoryID(),
		Text:      input.Text,
		TextHash:  hash,
		Embedding: vec,
		Project:   input.Project,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Memory().Put(ctx, mem); err != nil {
		return nil, goerr.Wrap(err, "failed to save memory", goerr.V(model.MemoryIDKey, mem.ID))
	}

	logging.From(ctx).Info("memory saved",
		"id", mem.ID,
		"project", mem.Project,
		"tags", len(mem.Tags))

	return &SaveResult{ID: mem.ID, Duplicate: false, Reason: ReasonCreated}, nil
}

type SearchInput struct {
	Query   string
	Project string
	Tags    []string
	Limit   int
	// Threshold is the minimum cosine similarity. nil means the configured default.
	Threshold  *float64
	AfterDate  string
	BeforeDate string
}

type scored struct {
	memory *model.Memory
	score  float64
}

// SearchMemory ranks active memories by similarity to the query.
// Unparseable after/before dates are ignored.
func (uc *MemoryUseCase) SearchMemory(ctx context.Context, input SearchInput) ([]*model.SearchResult, error) {
	logger := logging.From(ctx)

	queryVec, err := uc.vectorizer.Embed(ctx, input.Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	memories, err := uc.repo.Memory().ListAllActive(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memories")
	}

	if input.Project != "" || len(input.Tags) > 0 {
		filter := model.ListFilter{Project: input.Project, Tags: input.Tags}
		memories = slices.DeleteFunc(memories, func(m *model.Memory) bool {
			return !filter.Match(m)
		})
	}

	if input.AfterDate != "" {
		if after, err := model.ParseTimestamp(input.AfterDate); err != nil {
			logger.Debug("ignoring unparseable after_date", model.DateKey, input.AfterDate)
		} else {
			memories = slices.DeleteFunc(memories, func(m *model.Memory) bool {
				return m.CreatedAt < after
			})
		}
	}

	if input.BeforeDate != "" {
		if before, err := model.ParseTimestamp(input.BeforeDate); err != nil {
			logger.Debug("ignoring unparseable before_date", model.DateKey, input.BeforeDate)
		} else {
			memories = slices.DeleteFunc(memories, func(m *model.Memory) bool {
				return m.CreatedAt > before
			})
		}
	}

	threshold := uc.threshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	candidates := make([]scored, 0, len(memories))
	for _, m := range memories {
		if m.Embedding == nil {
			continue
		}
		score := embedding.CosineSimilarity(queryVec, m.Embedding)
		if score >= threshold {
			candidates = append(candidates, scored{memory: m, score: score})
		}
	}
	sortByScore(candidates)

	limit := input.Limit
	if limit <= 0 {
		limit = uc.searchLimit
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return toResults(candidates), nil
}

type ListInput struct {
	Project string
	Tags    []string
	Page    int
	Limit   int
	Sort    model.SortOrder
	Query   string
}

type ListResult struct {
	Memories []*model.SearchResult
	Total    int
}

// ListMemories pages through active memories by date or by relevance to Query.
func (uc *MemoryUseCase) ListMemories(ctx context.Context, input ListInput) (*ListResult, error) {
	if err := input.Sort.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidSortOrder, "invalid sort order", goerr.V(SortKey, input.Sort))
	}

	page := max(input.Page, 1)
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := (page - 1) * limit

	if input.Sort == model.SortByRelevance && input.Query != "" {
		return uc.listByRelevance(ctx, input, offset, limit)
	}

	filter := model.ListFilter{
		Project: input.Project,
		Tags:    input.Tags,
		Limit:   limit,
		Offset:  offset,
	}

	memories, err := uc.repo.Memory().List(ctx, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories")
	}
	total, err := uc.repo.Memory().Count(ctx, filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count memories")
	}

	results := make([]*model.SearchResult, len(memories))
	for i, m := range memories {
		results[i] = model.NewSearchResult(m, nil)
	}
	return &ListResult{Memories: results, Total: total}, nil
}

func (uc *MemoryUseCase) listByRelevance(ctx context.Context, input ListInput, offset, limit int) (*ListResult, error) {
	memories, err := uc.repo.Memory().List(ctx, model.ListFilter{
		Project: input.Project,
		Tags:    input.Tags,
		Limit:   uc.exportLimit,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories")
	}

	queryVec, err := uc.vectorizer.Embed(ctx, input.Query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	candidates := make([]scored, 0, len(memories))
	for _, m := range memories {
		if m.Embedding == nil {
			continue
		}
		candidates = append(candidates, scored{memory: m, score: embedding.CosineSimilarity(queryVec, m.Embedding)})
	}
	sortByScore(candidates)

	start := min(offset, len(candidates))
	end := min(start+limit, len(candidates))

	return &ListResult{Memories: toResults(candidates[start:end]), Total: len(memories)}, nil
}

// DeleteMemory removes the memory permanently. It returns false when id does not exist.
func (uc *MemoryUseCase) DeleteMemory(ctx context.Context, id model.MemoryID) (bool, error) {
	deleted, err := uc.repo.Memory().HardDelete(ctx, id)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete memory", goerr.V(model.MemoryIDKey, id))
	}
	if deleted {
		logging.From(ctx).Info("memory deleted", "id", id)
	}
	return deleted, nil
}

// ArchiveMemory hides the memory from search, list, export and stats.
// It returns false when id does not exist or is already archived.
func (uc *MemoryUseCase) ArchiveMemory(ctx context.Context, id model.MemoryID) (bool, error) {
	archived, err := uc.repo.Memory().SoftDelete(ctx, id)
	if err != nil {
		return false, goerr.Wrap(err, "failed to archive memory", goerr.V(model.MemoryIDKey, id))
	}
	if archived {
		logging.From(ctx).Info("memory archived", "id", id)
	}
	return archived, nil
}

type BulkDeleteInput struct {
	Project    string
	BeforeDate string
}

// BulkDelete permanently removes memories matching every given condition,
// archived or not. With no condition every memory is removed.
func (uc *MemoryUseCase) BulkDelete(ctx context.Context, input BulkDeleteInput) (int, error) {
	filter := model.BulkDeleteFilter{Project: input.Project}

	if input.BeforeDate != "" {
		before, err := model.ParseTimestamp(input.BeforeDate)
		if err != nil {
			return 0, goerr.Wrap(ErrInvalidBeforeDate, "invalid date format for before_date",
				goerr.V(model.DateKey, input.BeforeDate))
		}
		filter.Before = &before
	}

	if input.Project == "" && input.BeforeDate == "" {
		logging.From(ctx).Warn("bulk delete without project or before_date removes every memory")
	}

	deleted, err := uc.repo.Memory().BulkHardDelete(ctx, filter)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to bulk delete memories",
			goerr.V(model.ProjectKey, input.Project),
			goerr.V(model.DateKey, input.BeforeDate))
	}

	logging.From(ctx).Info("memories bulk deleted",
		"count", deleted,
		"project", input.Project,
		"before_date", input.BeforeDate)

	return deleted, nil
}

// Stats aggregates active memories.
func (uc *MemoryUseCase) Stats(ctx context.Context) (*model.Stats, error) {
	stats, err := uc.repo.Memory().Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory stats")
	}
	return stats, nil
}

func sortByScore(candidates []scored) {
	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
}

func toResults(candidates []scored) []*model.SearchResult {
	results := make([]*model.SearchResult, len(candidates))
	for i, c := range candidates {
		score := roundScore(c.score)
		results[i] = model.NewSearchResult(c.memory, &score)
	}
	return results
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// stubVectorizer returns fixed vectors per text and [0, 0] for unknown text.
type stubVectorizer struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubVectorizer) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

func (s *stubVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (s *stubVectorizer) Dimension() int { return 2 }
func (s *stubVectorizer) Model() string  { return "stub" }

// sequenceClock returns start, start+1, ... on each call.
func sequenceClock(start int64) func() int64 {
	next := start
	return func() int64 {
		now := next
		next++
		return now
	}
}

func newTestUseCase(t *testing.T, vectors map[string][]float32, opts ...usecase.MemoryOption) (*usecase.MemoryUseCase, *memory.Memory, *stubVectorizer) {
	t.Helper()
	repo := memory.New()
	vec := &stubVectorizer{vectors: vectors}
	opts = append([]usecase.MemoryOption{usecase.WithClock(sequenceClock(1700000000))}, opts...)
	return usecase.NewMemoryUseCase(repo, vec, opts...), repo, vec
}

func ptr[T any](v T) *T {
	return &v
}

func TestMemoryUseCase_SaveMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("second save of same text is a duplicate", func(t *testing.T) {
		uc, repo, vec := newTestUseCase(t, nil)

		first, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "hello", Project: "p1", Tags: []string{"x"}})
		gt.NoError(t, err).Required()
		gt.Bool(t, first.Duplicate).False()
		gt.Value(t, first.Reason).Equal(usecase.ReasonCreated)

		second, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "hello", Project: "p2"})
		gt.NoError(t, err).Required()
		gt.Bool(t, second.Duplicate).True()
		gt.Value(t, second.Reason).Equal(usecase.ReasonDuplicate)
		gt.Value(t, second.ID).Equal(first.ID)

		count, err := repo.Memory().Count(ctx, model.ListFilter{})
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(1)
		gt.Value(t, vec.calls).Equal(1)
	})

	t.Run("stores hash, embedding, project, tags and timestamps", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t, map[string][]float32{"A": {1, 0}})

		result, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "A", Project: "p1", Tags: []string{"x"}})
		gt.NoError(t, err).Required()

		got, err := repo.Memory().GetByID(ctx, result.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.TextHash).Equal(model.HashText("A"))
		gt.Value(t, got.Embedding).Equal([]float32{1, 0})
		gt.Value(t, got.Project).Equal("p1")
		gt.Value(t, got.Tags).Equal([]string{"x"})
		gt.Value(t, got.CreatedAt).Equal(int64(1700000000))
		gt.Value(t, got.UpdatedAt).Equal(int64(1700000000))
		gt.Bool(t, got.Archived).False()
	})

	t.Run("archived text can be saved again", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t, nil)

		first, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "again"})
		gt.NoError(t, err).Required()
		archived, err := uc.ArchiveMemory(ctx, first.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, archived).True()

		second, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "again"})
		gt.NoError(t, err).Required()
		gt.Bool(t, second.Duplicate).False()
		gt.Value(t, second.ID).NotEqual(first.ID)
	})

	t.Run("text length limit counts characters", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t, nil, usecase.WithMaxTextLength(5))

		_, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "12345"})
		gt.NoError(t, err)

		_, err = uc.SaveMemory(ctx, usecase.SaveInput{Text: "あいうえお"})
		gt.NoError(t, err)

		_, err = uc.SaveMemory(ctx, usecase.SaveInput{Text: "123456"})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("vectorizer failure stores nothing", func(t *testing.T) {
		uc, repo, vec := newTestUseCase(t, nil)
		vec.err = errors.New("model unavailable")

		_, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "lost"})
		gt.Error(t, err).Is(vec.err)

		count, err := repo.Memory().Count(ctx, model.ListFilter{})
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(0)
	})
}

func TestMemoryUseCase_SearchMemory(t *testing.T) {
	ctx := context.Background()
	vectors := map[string][]float32{
		"A": {1, 0},
		"B": {0, 1},
		"C": {0.8, 0.6},
		"q": {1, 0},
	}

	setup := func(t *testing.T) (*usecase.MemoryUseCase, map[string]model.MemoryID) {
		uc, _, _ := newTestUseCase(t, vectors)
		ids := map[string]model.MemoryID{}
		for _, in := range []usecase.SaveInput{
			{Text: "A", Project: "p1", Tags: []string{"x"}},
			{Text: "B", Project: "p1", Tags: []string{"y"}},
			{Text: "C", Project: "p2", Tags: []string{"x", "z"}},
		} {
			result, err := uc.SaveMemory(ctx, in)
			gt.NoError(t, err).Required()
			ids[in.Text] = result.ID
		}
		return uc, ids
	}

	t.Run("returns only results above threshold ranked by score", func(t *testing.T) {
		uc, _ := setup(t)

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q", Threshold: ptr(0.5)})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		gt.Value(t, results[0].Text).Equal("A")
		gt.Value(t, *results[0].Score).Equal(1.0)
		gt.Value(t, results[1].Text).Equal("C")
		gt.Value(t, *results[1].Score).Equal(0.8)
	})

	t.Run("project filter", func(t *testing.T) {
		uc, _ := setup(t)

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q", Project: "p1", Threshold: ptr(0.5)})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].Text).Equal("A")
		gt.Value(t, results[0].Project).Equal("p1")
		gt.Value(t, results[0].Tags).Equal([]string{"x"})
		gt.Value(t, results[0].CreatedAt).Equal("2023-11-14T22:13:20Z")
	})

	t.Run("tags filter matches any tag", func(t *testing.T) {
		uc, _ := setup(t)

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q", Tags: []string{"z", "y"}, Threshold: ptr(0.0)})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		gt.Value(t, results[0].Text).Equal("C")
		gt.Value(t, results[1].Text).Equal("B")
	})

	t.Run("default threshold applies when none given", func(t *testing.T) {
		uc, _ := setup(t)

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q"})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
	})

	t.Run("limit truncates ranked results", func(t *testing.T) {
		uc, _ := setup(t)

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q", Limit: 1, Threshold: ptr(0.0)})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].Text).Equal("A")
	})

	t.Run("date filters are inclusive and unparseable dates are ignored", func(t *testing.T) {
		uc, _ := setup(t)

		// A, B and C were created at 1700000000, 1700000001 and 1700000002.
		results, err := uc.SearchMemory(ctx, usecase.SearchInput{
			Query:      "q",
			Threshold:  ptr(-1.0),
			AfterDate:  "2023-11-14T22:13:21Z",
			BeforeDate: "2023-11-14T22:13:22Z",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		gt.Value(t, results[0].Text).Equal("C")
		gt.Value(t, results[1].Text).Equal("B")

		results, err = uc.SearchMemory(ctx, usecase.SearchInput{
			Query:      "q",
			Threshold:  ptr(-1.0),
			AfterDate:  "not-a-date",
			BeforeDate: "also-not-a-date",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(3)
	})

	t.Run("archived memories are excluded", func(t *testing.T) {
		uc, ids := setup(t)

		archived, err := uc.ArchiveMemory(ctx, ids["A"])
		gt.NoError(t, err).Required()
		gt.Bool(t, archived).True()

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q", Threshold: ptr(0.5)})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].Text).Equal("C")
	})

	t.Run("empty store returns empty results", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t, vectors)

		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q"})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})
}

func TestMemoryUseCase_ListMemories(t *testing.T) {
	ctx := context.Background()
	vectors := map[string][]float32{
		"A": {1, 0},
		"B": {0, 1},
		"C": {0.8, 0.6},
		"q": {0, 1},
	}

	setup := func(t *testing.T) *usecase.MemoryUseCase {
		uc, _, _ := newTestUseCase(t, vectors)
		for _, in := range []usecase.SaveInput{
			{Text: "A", Project: "p1", Tags: []string{"x"}},
			{Text: "B", Project: "p1"},
			{Text: "C", Project: "p2", Tags: []string{"x"}},
		} {
			_, err := uc.SaveMemory(ctx, in)
			gt.NoError(t, err).Required()
		}
		return uc
	}

	texts := func(results []*model.SearchResult) []string {
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = r.Text
		}
		return out
	}

	t.Run("date sort pages newest first", func(t *testing.T) {
		uc := setup(t)

		page1, err := uc.ListMemories(ctx, usecase.ListInput{Page: 1, Limit: 2})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(page1.Memories)).Equal([]string{"C", "B"})
		gt.Value(t, page1.Total).Equal(3)
		gt.Value(t, page1.Memories[0].Score).Nil()

		page2, err := uc.ListMemories(ctx, usecase.ListInput{Page: 2, Limit: 2})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(page2.Memories)).Equal([]string{"A"})
		gt.Value(t, page2.Total).Equal(3)
	})

	t.Run("page below one is treated as first page", func(t *testing.T) {
		uc := setup(t)

		result, err := uc.ListMemories(ctx, usecase.ListInput{Page: 0, Limit: 1})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(result.Memories)).Equal([]string{"C"})
	})

	t.Run("filters by project and tags", func(t *testing.T) {
		uc := setup(t)

		result, err := uc.ListMemories(ctx, usecase.ListInput{Project: "p1", Tags: []string{"x"}})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(result.Memories)).Equal([]string{"A"})
		gt.Value(t, result.Total).Equal(1)
	})

	t.Run("relevance sort ranks by similarity to query", func(t *testing.T) {
		uc := setup(t)

		result, err := uc.ListMemories(ctx, usecase.ListInput{Sort: model.SortByRelevance, Query: "q", Limit: 2})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(result.Memories)).Equal([]string{"B", "C"})
		gt.Value(t, result.Total).Equal(3)
		gt.Value(t, *result.Memories[0].Score).Equal(1.0)
		gt.Value(t, *result.Memories[1].Score).Equal(0.6)

		page2, err := uc.ListMemories(ctx, usecase.ListInput{Sort: model.SortByRelevance, Query: "q", Page: 2, Limit: 2})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(page2.Memories)).Equal([]string{"A"})
	})

	t.Run("relevance sort without query falls back to date", func(t *testing.T) {
		uc := setup(t)

		result, err := uc.ListMemories(ctx, usecase.ListInput{Sort: model.SortByRelevance})
		gt.NoError(t, err).Required()
		gt.Value(t, texts(result.Memories)).Equal([]string{"C", "B", "A"})
		gt.Value(t, result.Memories[0].Score).Nil()
	})

	t.Run("unknown sort order is rejected", func(t *testing.T) {
		uc := setup(t)

		_, err := uc.ListMemories(ctx, usecase.ListInput{Sort: "random"})
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestMemoryUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("hard delete", func(t *testing.T) {
		uc, repo, _ := newTestUseCase(t, nil)
		saved, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "gone"})
		gt.NoError(t, err).Required()

		deleted, err := uc.DeleteMemory(ctx, saved.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).True()

		got, err := repo.Memory().GetByID(ctx, saved.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Nil()

		deleted, err = uc.DeleteMemory(ctx, saved.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, deleted).False()
	})

	t.Run("archive twice reports false the second time", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t, nil)
		saved, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "hidden"})
		gt.NoError(t, err).Required()

		archived, err := uc.ArchiveMemory(ctx, saved.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, archived).True()

		archived, err = uc.ArchiveMemory(ctx, saved.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, archived).False()

		archived, err = uc.ArchiveMemory(ctx, model.NewMemoryID())
		gt.NoError(t, err).Required()
		gt.Bool(t, archived).False()
	})
}

func TestMemoryUseCase_BulkDelete(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*usecase.MemoryUseCase, *memory.Memory) {
		uc, repo, _ := newTestUseCase(t, nil)
		records := []*model.Memory{
			{ID: model.NewMemoryID(), Text: "old", Project: "p1", CreatedAt: 1577836799},
			{ID: model.NewMemoryID(), Text: "edge", Project: "p1", CreatedAt: 1577836800},
			{ID: model.NewMemoryID(), Text: "old archived", Project: "p2", CreatedAt: 1500000000, Archived: true},
			{ID: model.NewMemoryID(), Text: "new", Project: "p2", CreatedAt: 1700000000},
		}
		for _, m := range records {
			m.TextHash = model.HashText(m.Text)
			gt.NoError(t, repo.Memory().Put(ctx, m)).Required()
		}
		return uc, repo
	}

	t.Run("before date removes strictly older records regardless of archived flag", func(t *testing.T) {
		uc, repo := setup(t)

		deleted, err := uc.BulkDelete(ctx, usecase.BulkDeleteInput{BeforeDate: "2020-01-01T00:00:00Z"})
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal(2)

		remaining, err := repo.Memory().ListAllActive(ctx)
		gt.NoError(t, err).Required()
		gt.Array(t, remaining).Length(2)
	})

	t.Run("project and date are combined", func(t *testing.T) {
		uc, _ := setup(t)

		deleted, err := uc.BulkDelete(ctx, usecase.BulkDeleteInput{Project: "p2", BeforeDate: "2020-01-01"})
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal(1)
	})

	t.Run("unparseable date deletes nothing", func(t *testing.T) {
		uc, repo := setup(t)

		_, err := uc.BulkDelete(ctx, usecase.BulkDeleteInput{BeforeDate: "not-a-date"})
		gt.Error(t, err).Is(model.ErrValidation)

		deleted, err := repo.Memory().BulkHardDelete(ctx, model.BulkDeleteFilter{})
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal(4)
	})

	t.Run("no filter removes everything", func(t *testing.T) {
		uc, _ := setup(t)

		deleted, err := uc.BulkDelete(ctx, usecase.BulkDeleteInput{})
		gt.NoError(t, err).Required()
		gt.Value(t, deleted).Equal(4)
	})
}

func TestMemoryUseCase_Stats(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestUseCase(t, nil)

	for _, in := range []usecase.SaveInput{
		{Text: "one", Project: "p1", Tags: []string{"a", "b"}},
		{Text: "two", Project: "p1", Tags: []string{"b"}},
		{Text: "three", Tags: []string{"c"}},
	} {
		_, err := uc.SaveMemory(ctx, in)
		gt.NoError(t, err).Required()
	}

	stats, err := uc.Stats(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, stats.TotalCount).Equal(3)
	gt.Value(t, stats.ByProject).Equal(map[string]int{"p1": 2})
	gt.Value(t, stats.TopTags).Equal([]string{"b", "a", "c"})
}

func TestMemoryUseCase_Export(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *usecase.MemoryUseCase {
		uc, _, _ := newTestUseCase(t, nil)
		for _, in := range []usecase.SaveInput{
			{Text: "first", Project: "p1", Tags: []string{"x", "y"}},
			{Text: "second"},
			{Text: "third", Project: "p2"},
		} {
			_, err := uc.SaveMemory(ctx, in)
			gt.NoError(t, err).Required()
		}
		return uc
	}

	t.Run("json matches list output", func(t *testing.T) {
		uc := setup(t)

		exported, err := uc.Export(ctx, model.ExportJSON, "")
		gt.NoError(t, err).Required()
		gt.Value(t, exported.ContentType).Equal(usecase.ContentTypeJSON)

		var doc struct {
			Memories []struct {
				ID        string   `json:"id"`
				Text      string   `json:"text"`
				Project   *string  `json:"project"`
				Tags      []string `json:"tags"`
				CreatedAt string   `json:"created_at"`
			} `json:"memories"`
		}
		gt.NoError(t, json.Unmarshal(exported.Body, &doc)).Required()

		listed, err := uc.ListMemories(ctx, usecase.ListInput{Limit: 1000})
		gt.NoError(t, err).Required()
		gt.Array(t, doc.Memories).Length(len(listed.Memories))

		for i, m := range doc.Memories {
			want := listed.Memories[i]
			gt.Value(t, model.MemoryID(m.ID)).Equal(want.ID)
			gt.Value(t, m.Text).Equal(want.Text)
			gt.Value(t, m.Tags).Equal(want.Tags)
			gt.Value(t, m.CreatedAt).Equal(want.CreatedAt)
			if want.Project == "" {
				gt.Value(t, m.Project).Nil()
			} else {
				gt.Value(t, *m.Project).Equal(want.Project)
			}
		}
	})

	t.Run("json filtered by project", func(t *testing.T) {
		uc := setup(t)

		exported, err := uc.Export(ctx, model.ExportJSON, "p2")
		gt.NoError(t, err).Required()
		gt.String(t, string(exported.Body)).Contains(`"text":"third"`)
		gt.Bool(t, len(exported.Body) > 0).True()

		var doc map[string][]map[string]any
		gt.NoError(t, json.Unmarshal(exported.Body, &doc)).Required()
		gt.Array(t, doc["memories"]).Length(1)
	})

	t.Run("markdown", func(t *testing.T) {
		uc, _, _ := newTestUseCase(t, nil)
		saved, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: "note body"})
		gt.NoError(t, err).Required()

		exported, err := uc.Export(ctx, model.ExportMarkdown, "")
		gt.NoError(t, err).Required()
		gt.Value(t, exported.ContentType).Equal(usecase.ContentTypeMarkdown)

		want := "# Memory Export\n\n" +
			"## " + saved.ID.String() + "\n" +
			"**Project**: None\n" +
			"**Tags**: None\n" +
			"**Created**: 2023-11-14T22:13:20Z\n" +
			"\nnote body\n\n" +
			"---\n"
		gt.Value(t, string(exported.Body)).Equal(want)
	})

	t.Run("unsupported format", func(t *testing.T) {
		uc := setup(t)

		_, err := uc.Export(ctx, "csv", "")
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestRenderMarkdown(t *testing.T) {
	results := []*model.SearchResult{
		{ID: "id-1", Text: "body", Project: "p", Tags: []string{"a", "b"}, CreatedAt: "2024-01-01T00:00:00Z"},
	}

	got := usecase.RenderMarkdown(results)
	gt.String(t, got).Contains("**Project**: p\n")
	gt.String(t, got).Contains("**Tags**: a, b\n")
	gt.String(t, got).Contains("## id-1\n")
}

func TestRoundScore(t *testing.T) {
	gt.Value(t, usecase.RoundScore(0.123456)).Equal(0.1235)
	gt.Value(t, usecase.RoundScore(1.0)).Equal(1.0)
}

func TestMemoryUseCase_UnembeddedRecords(t *testing.T) {
	ctx := context.Background()
	uc, repo, _ := newTestUseCase(t, map[string][]float32{
		"A": {1, 0},
		"B": {0.8, 0.6},
		"q": {1, 0},
	})

	for _, text := range []string{"A", "B"} {
		_, err := uc.SaveMemory(ctx, usecase.SaveInput{Text: text, Project: "p1"})
		gt.NoError(t, err).Required()
	}

	raw := &model.Memory{
		ID:        model.NewMemoryID(),
		Text:      "raw",
		TextHash:  model.HashText("raw"),
		Project:   "p1",
		Tags:      []string{},
		CreatedAt: 1800000000,
		UpdatedAt: 1800000000,
	}
	gt.NoError(t, repo.Memory().Put(ctx, raw)).Required()

	t.Run("search skips records without embedding", func(t *testing.T) {
		results, err := uc.SearchMemory(ctx, usecase.SearchInput{Query: "q", Threshold: ptr(0.0)})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
		for _, r := range results {
			gt.Value(t, r.ID).NotEqual(raw.ID)
		}
	})

	t.Run("relevance listing skips them but counts them in total", func(t *testing.T) {
		result, err := uc.ListMemories(ctx, usecase.ListInput{Sort: model.SortByRelevance, Query: "q"})
		gt.NoError(t, err).Required()
		gt.Array(t, result.Memories).Length(2)
		gt.Value(t, result.Total).Equal(3)
		gt.Value(t, result.Memories[0].Text).Equal("A")
	})

	t.Run("date listing includes them", func(t *testing.T) {
		result, err := uc.ListMemories(ctx, usecase.ListInput{Sort: model.SortByDate})
		gt.NoError(t, err).Required()
		gt.Array(t, result.Memories).Length(3)
		gt.Value(t, result.Total).Equal(3)
		gt.Value(t, result.Memories[0].ID).Equal(raw.ID)
	})
}

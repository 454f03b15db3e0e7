package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/mnemosyne/pkg/controller/http"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

const testAPIKey = "secret-key"

type failingVectorizer struct{}

func (failingVectorizer) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("connection refused to 10.0.0.1")
}

func (failingVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("connection refused to 10.0.0.1")
}

func (failingVectorizer) Dimension() int { return 2 }
func (failingVectorizer) Model() string  { return "failing" }

func newTestServer(t *testing.T, opts ...httpctrl.Options) *httpctrl.Server {
	t.Helper()
	vec, err := embedding.NewHash(64)
	gt.NoError(t, err).Required()
	uc := usecase.New(memory.New(), vec)
	return httpctrl.New(uc, opts...)
}

func doRequest(t *testing.T, srv http.Handler, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = strings.NewReader(v)
		default:
			data, err := json.Marshal(v)
			gt.NoError(t, err).Required()
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &v)).Required()
	return v
}

type saveResp struct {
	ID        string `json:"id"`
	Saved     bool   `json:"saved"`
	Reason    string `json:"reason"`
	Duplicate bool   `json:"duplicate"`
}

type memoryResp struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Score     *float64 `json:"score"`
	Project   *string  `json:"project"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
}

type detailResp struct {
	Detail string `json:"detail"`
}

func save(t *testing.T, srv http.Handler, body map[string]any) saveResp {
	t.Helper()
	w := doRequest(t, srv, http.MethodPost, "/memory/save", body, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	return decode[saveResp](t, w)
}

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(t, httpctrl.WithVersion("v1.2.3"))

	w := doRequest(t, srv, http.MethodGet, "/", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	root := decode[map[string]string](t, w)
	gt.Value(t, root["name"]).Equal("mnemosyne")
	gt.Value(t, root["version"]).Equal("v1.2.3")

	w = doRequest(t, srv, http.MethodGet, "/health", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode[map[string]string](t, w)["status"]).Equal("healthy")
}

func TestSave(t *testing.T) {
	t.Run("creates then reports duplicate", func(t *testing.T) {
		srv := newTestServer(t)

		first := save(t, srv, map[string]any{"text": "The deployment deadline is March 15", "project": "ops", "tags": []string{"deadline"}})
		gt.Bool(t, first.Saved).True()
		gt.Bool(t, first.Duplicate).False()
		gt.Value(t, first.Reason).Equal("created")
		gt.Value(t, first.ID).NotEqual("")

		second := save(t, srv, map[string]any{"text": "The deployment deadline is March 15"})
		gt.Bool(t, second.Saved).True()
		gt.Bool(t, second.Duplicate).True()
		gt.Value(t, second.Reason).Equal("duplicate")
		gt.Value(t, second.ID).Equal(first.ID)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		srv := newTestServer(t)

		testCases := []struct {
			name string
			body any
		}{
			{name: "malformed json", body: "{not json"},
			{name: "empty text", body: map[string]any{"text": ""}},
			{name: "missing text", body: map[string]any{"project": "p"}},
			{name: "long project", body: map[string]any{"text": "t", "project": strings.Repeat("p", 101)}},
			{name: "too long text", body: map[string]any{"text": strings.Repeat("a", 10001)}},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				w := doRequest(t, srv, http.MethodPost, "/memory/save", tc.body, nil)
				gt.Value(t, w.Code).Equal(http.StatusBadRequest)
				gt.Value(t, decode[detailResp](t, w).Detail).NotEqual("")
			})
		}
	})

	t.Run("accepts text at maximum length", func(t *testing.T) {
		srv := newTestServer(t)
		w := doRequest(t, srv, http.MethodPost, "/memory/save", map[string]any{"text": strings.Repeat("a", 10000)}, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
	})

	t.Run("hides internal error details", func(t *testing.T) {
		uc := usecase.New(memory.New(), failingVectorizer{})
		srv := httpctrl.New(uc)

		w := doRequest(t, srv, http.MethodPost, "/memory/save", map[string]any{"text": "x"}, nil)
		gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
		gt.Value(t, decode[detailResp](t, w).Detail).Equal("Internal server error")
		gt.Bool(t, strings.Contains(w.Body.String(), "10.0.0.1")).False()
	})
}

func TestAPIKey(t *testing.T) {
	srv := newTestServer(t, httpctrl.WithAPIKey(testAPIKey))

	t.Run("missing key is rejected", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPost, "/memory/save", map[string]any{"text": "x"}, nil)
		gt.Value(t, w.Code).Equal(http.StatusForbidden)
		gt.Value(t, decode[detailResp](t, w).Detail).Equal("Invalid or missing API key")
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		for _, target := range []struct{ method, path string }{
			{http.MethodPost, "/memory/save"},
			{http.MethodPost, "/memory/bulk-delete"},
			{http.MethodDelete, "/memory/some-id"},
			{http.MethodPost, "/memory/some-id/archive"},
		} {
			w := doRequest(t, srv, target.method, target.path, map[string]any{}, map[string]string{"X-API-Key": "wrong"})
			gt.Value(t, w.Code).Equal(http.StatusForbidden)
		}
	})

	t.Run("correct key is accepted", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodPost, "/memory/save", map[string]any{"text": "x"}, map[string]string{"X-API-Key": testAPIKey})
		gt.Value(t, w.Code).Equal(http.StatusOK)
	})

	t.Run("read routes stay open", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/list", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		w = doRequest(t, srv, http.MethodGet, "/memory/stats", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
	})
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	save(t, srv, map[string]any{"text": "deployment deadline", "project": "ops", "tags": []string{"deadline"}})
	save(t, srv, map[string]any{"text": "bananas are yellow"})

	t.Run("exact text scores 1", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/search?q=deployment+deadline", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)

		resp := decode[struct {
			Query   string       `json:"query"`
			Results []memoryResp `json:"results"`
			Total   int          `json:"total"`
		}](t, w)
		gt.Value(t, resp.Query).Equal("deployment deadline")
		gt.Bool(t, resp.Total >= 1).True()
		gt.Value(t, resp.Results[0].Text).Equal("deployment deadline")
		gt.Value(t, *resp.Results[0].Score).Equal(1.0)
		gt.Value(t, *resp.Results[0].Project).Equal("ops")
		gt.Value(t, resp.Results[0].Tags).Equal([]string{"deadline"})
		gt.Bool(t, strings.HasSuffix(resp.Results[0].CreatedAt, "Z")).True()
	})

	t.Run("project filter excludes other projects", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/search?q=deployment+deadline&project=other&threshold=0", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		resp := decode[struct {
			Total int `json:"total"`
		}](t, w)
		gt.Value(t, resp.Total).Equal(0)
	})

	t.Run("invalid params are rejected", func(t *testing.T) {
		for _, target := range []string{
			"/memory/search",
			"/memory/search?q=x&limit=0",
			"/memory/search?q=x&limit=51",
			"/memory/search?q=x&limit=abc",
			"/memory/search?q=x&threshold=1.5",
			"/memory/search?q=x&threshold=-0.1",
		} {
			w := doRequest(t, srv, http.MethodGet, target, nil, nil)
			gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		}
	})

	t.Run("unparseable dates are ignored", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/search?q=deployment+deadline&after_date=garbage", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
	})
}

func TestList(t *testing.T) {
	srv := newTestServer(t)
	for _, text := range []string{"one", "two", "three"} {
		save(t, srv, map[string]any{"text": text, "tags": []string{"n"}})
	}

	type listResp struct {
		Memories   []memoryResp `json:"memories"`
		Page       int          `json:"page"`
		TotalPages int          `json:"total_pages"`
		TotalItems int          `json:"total_items"`
	}

	t.Run("paginates", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/list?limit=2&page=2", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		resp := decode[listResp](t, w)
		gt.Value(t, resp.Page).Equal(2)
		gt.Value(t, resp.TotalItems).Equal(3)
		gt.Value(t, resp.TotalPages).Equal(2)
		gt.Array(t, resp.Memories).Length(1)
		gt.Value(t, resp.Memories[0].Score).Nil()
		gt.Value(t, resp.Memories[0].Project).Nil()
	})

	t.Run("relevance sort carries scores", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/list?sort=relevance&q=two", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		resp := decode[listResp](t, w)
		gt.Array(t, resp.Memories).Length(3)
		gt.Value(t, resp.Memories[0].Text).Equal("two")
		gt.Value(t, *resp.Memories[0].Score).Equal(1.0)
	})

	t.Run("tags csv", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/memory/list?tags=+,missing,+n+", nil, nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decode[listResp](t, w).TotalItems).Equal(3)
	})

	t.Run("invalid params are rejected", func(t *testing.T) {
		for _, target := range []string{
			"/memory/list?page=0",
			"/memory/list?limit=101",
			"/memory/list?sort=random",
		} {
			w := doRequest(t, srv, http.MethodGet, target, nil, nil)
			gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		}
	})
}

func TestDeleteAndArchive(t *testing.T) {
	srv := newTestServer(t)
	a := save(t, srv, map[string]any{"text": "to delete"})
	b := save(t, srv, map[string]any{"text": "to archive"})

	w := doRequest(t, srv, http.MethodDelete, "/memory/"+a.ID, nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	deleted := decode[struct {
		Deleted bool   `json:"deleted"`
		ID      string `json:"id"`
	}](t, w)
	gt.Bool(t, deleted.Deleted).True()
	gt.Value(t, deleted.ID).Equal(a.ID)

	w = doRequest(t, srv, http.MethodDelete, "/memory/"+a.ID, nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusNotFound)

	w = doRequest(t, srv, http.MethodPost, "/memory/"+b.ID+"/archive", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	w = doRequest(t, srv, http.MethodPost, "/memory/"+b.ID+"/archive", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusNotFound)

	w = doRequest(t, srv, http.MethodGet, "/memory/stats", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode[map[string]any](t, w)["total_memories"]).Equal(float64(0))
}

func TestBulkDelete(t *testing.T) {
	srv := newTestServer(t)
	save(t, srv, map[string]any{"text": "a", "project": "p1"})
	save(t, srv, map[string]any{"text": "b", "project": "p2"})

	w := doRequest(t, srv, http.MethodPost, "/memory/bulk-delete", map[string]any{"before_date": "not-a-date"}, nil)
	gt.Value(t, w.Code).Equal(http.StatusBadRequest)

	w = doRequest(t, srv, http.MethodPost, "/memory/bulk-delete", map[string]any{"before_date": "2020-01-01T00:00:00Z"}, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode[map[string]int](t, w)["deleted_count"]).Equal(0)

	w = doRequest(t, srv, http.MethodPost, "/memory/bulk-delete", map[string]any{"project": "p1"}, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode[map[string]int](t, w)["deleted_count"]).Equal(1)

	w = doRequest(t, srv, http.MethodPost, "/memory/bulk-delete", map[string]any{}, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decode[map[string]int](t, w)["deleted_count"]).Equal(1)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	save(t, srv, map[string]any{"text": "a", "project": "p1", "tags": []string{"x", "y"}})
	save(t, srv, map[string]any{"text": "b", "project": "p1", "tags": []string{"y"}})
	save(t, srv, map[string]any{"text": "c", "project": "p2"})

	w := doRequest(t, srv, http.MethodGet, "/memory/stats", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	resp := decode[struct {
		TotalMemories int            `json:"total_memories"`
		TotalProjects int            `json:"total_projects"`
		StorageMB     float64        `json:"storage_mb"`
		ByProject     map[string]int `json:"by_project"`
		TopTags       []string       `json:"top_tags"`
	}](t, w)
	gt.Value(t, resp.TotalMemories).Equal(3)
	gt.Value(t, resp.TotalProjects).Equal(2)
	gt.Value(t, resp.ByProject).Equal(map[string]int{"p1": 2, "p2": 1})
	gt.Value(t, resp.TopTags).Equal([]string{"y", "x"})
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)
	saved := save(t, srv, map[string]any{"text": "exported text"})

	w := doRequest(t, srv, http.MethodGet, "/memory/export", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, w.Header().Get("Content-Type")).Equal("application/json")
	gt.String(t, w.Body.String()).Contains(saved.ID)

	w = doRequest(t, srv, http.MethodGet, "/memory/export?format=markdown", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, w.Header().Get("Content-Type")).Equal("text/markdown")
	gt.String(t, w.Body.String()).Contains("# Memory Export")
	gt.String(t, w.Body.String()).Contains("## " + saved.ID)

	w = doRequest(t, srv, http.MethodGet, "/memory/export?format=csv", nil, nil)
	gt.Value(t, w.Code).Equal(http.StatusBadRequest)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, httpctrl.WithAPIKey(testAPIKey))

	req := httptest.NewRequest(http.MethodOptions, "/memory/save", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key, Content-Type")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	gt.Value(t, w.Code).Equal(http.StatusNoContent)
	gt.Value(t, w.Header().Get("Access-Control-Allow-Origin")).Equal("https://example.com")
	gt.String(t, w.Header().Get("Access-Control-Allow-Headers")).Contains("X-API-Key")

	w = doRequest(t, srv, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://example.com"})
	gt.Value(t, w.Header().Get("Access-Control-Allow-Origin")).Equal("https://example.com")
}

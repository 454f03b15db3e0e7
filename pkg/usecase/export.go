package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

const (
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown"
)

type ExportResult struct {
	ContentType string
	Body        []byte
}

type exportRecord struct {
	ID        model.MemoryID `json:"id"`
	Text      string         `json:"text"`
	Project   *string        `json:"project"`
	Tags      []string       `json:"tags"`
	CreatedAt string         `json:"created_at"`
}

type exportDocument struct {
	Memories []exportRecord `json:"memories"`
}

// Export renders active memories of project, or of every project when empty.
func (uc *MemoryUseCase) Export(ctx context.Context, format model.ExportFormat, project string) (*ExportResult, error) {
	switch format {
	case model.ExportJSON, model.ExportMarkdown:
	default:
		return nil, goerr.Wrap(ErrUnsupportedFormat, "unsupported export format", goerr.V(model.FormatKey, format))
	}

	memories, err := uc.repo.Memory().List(ctx, model.ListFilter{Project: project, Limit: uc.exportLimit})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories for export", goerr.V(model.ProjectKey, project))
	}

	results := make([]*model.SearchResult, len(memories))
	for i, m := range memories {
		results[i] = model.NewSearchResult(m, nil)
	}

	if format == model.ExportMarkdown {
		return &ExportResult{ContentType: ContentTypeMarkdown, Body: []byte(renderMarkdown(results))}, nil
	}

	body, err := renderJSON(results)
	if err != nil {
		return nil, err
	}
	return &ExportResult{ContentType: ContentTypeJSON, Body: body}, nil
}

func renderJSON(results []*model.SearchResult) ([]byte, error) {
	doc := exportDocument{Memories: make([]exportRecord, len(results))}
	for i, r := range results {
		rec := exportRecord{
			ID:        r.ID,
			Text:      r.Text,
			Tags:      r.Tags,
			CreatedAt: r.CreatedAt,
		}
		if r.Project != "" {
			rec.Project = &r.Project
		}
		doc.Memories[i] = rec
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal export")
	}
	return body, nil
}

func renderMarkdown(results []*model.SearchResult) string {
	lines := []string{"# Memory Export\n"}
	for _, r := range results {
		project := r.Project
		if project == "" {
			project = "None"
		}
		tags := "None"
		if len(r.Tags) > 0 {
			tags = strings.Join(r.Tags, ", ")
		}

		lines = append(lines,
			fmt.Sprintf("## %s", r.ID),
			fmt.Sprintf("**Project**: %s", project),
			fmt.Sprintf("**Tags**: %s", tags),
			fmt.Sprintf("**Created**: %s", r.CreatedAt),
			fmt.Sprintf("\n%s\n", r.Text),
			"---\n",
		)
	}
	return strings.Join(lines, "\n")
}

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	scoreColor   = color.New(color.FgGreen)
	metaColor    = color.New(color.FgHiBlack)
	warnColor    = color.New(color.FgYellow)
)

func writer(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// splitTags parses a comma separated tag list, trimming spaces and dropping empty items.
func splitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func printResult(w io.Writer, r *model.SearchResult) {
	headingColor.Fprintf(w, "%s", r.ID)
	if r.Score != nil {
		fmt.Fprint(w, "  ")
		scoreColor.Fprintf(w, "score=%.4f", *r.Score)
	}
	fmt.Fprintln(w)

	project := r.Project
	if project == "" {
		project = "-"
	}
	tags := "-"
	if len(r.Tags) > 0 {
		tags = strings.Join(r.Tags, ", ")
	}
	metaColor.Fprintf(w, "  project=%s tags=%s created=%s\n", project, tags, r.CreatedAt)
	fmt.Fprintf(w, "  %s\n\n", r.Text)
}

func printStats(w io.Writer, stats *model.Stats) {
	headingColor.Fprintln(w, "Memory statistics")
	fmt.Fprintf(w, "  total memories: %d\n", stats.TotalCount)
	fmt.Fprintf(w, "  total projects: %d\n", len(stats.ByProject))
	fmt.Fprintf(w, "  storage: %.2f MB\n", float64(stats.StorageBytes)/(1024*1024))

	if len(stats.ByProject) > 0 {
		headingColor.Fprintln(w, "By project")
		for project, count := range stats.ByProject {
			fmt.Fprintf(w, "  %s: %d\n", project, count)
		}
	}
	if len(stats.TopTags) > 0 {
		headingColor.Fprintln(w, "Top tags")
		fmt.Fprintf(w, "  %s\n", strings.Join(stats.TopTags, ", "))
	}
}

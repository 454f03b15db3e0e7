package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/urfave/cli/v3"
)

var (
	errMissingArgument    = goerr.New("missing argument")
	errUnscopedBulkDelete = goerr.New("bulk-delete without --project or --before-date requires --all")
)

// withEngine wraps action so that it receives configured use cases.
func withEngine(engineCfg *engineConfig, action func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		uc, cleanup, err := engineCfg.configure(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		return action(ctx, c, uc)
	}
}

func requireArg(c *cli.Command, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", goerr.Wrap(errMissingArgument, "argument is required", goerr.V("name", name))
	}
	return v, nil
}

func cmdSave() *cli.Command {
	var engineCfg engineConfig
	var project, tags string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Usage:       "Project the memory belongs to",
			Destination: &project,
		},
		&cli.StringFlag{
			Name:        "tags",
			Usage:       "Comma separated tags",
			Destination: &tags,
		},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:      "save",
		Usage:     "Save a memory",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			text, err := requireArg(c, "text")
			if err != nil {
				return err
			}

			result, err := uc.Memory.SaveMemory(ctx, usecase.SaveInput{
				Text:    text,
				Project: project,
				Tags:    splitTags(tags),
			})
			if err != nil {
				return err
			}

			w := writer(c)
			if result.Duplicate {
				warnColor.Fprintf(w, "Duplicate of %s\n", result.ID)
				return nil
			}
			scoreColor.Fprintf(w, "Saved %s\n", result.ID)
			return nil
		}),
	}
}

func cmdSearch() *cli.Command {
	var engineCfg engineConfig
	var (
		project    string
		tags       string
		limit      int
		threshold  float64
		afterDate  string
		beforeDate string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "project", Usage: "Restrict to a project", Destination: &project},
		&cli.StringFlag{Name: "tags", Usage: "Comma separated tags, any of which must match", Destination: &tags},
		&cli.IntFlag{Name: "limit", Usage: "Maximum number of results (default: configured search limit)", Destination: &limit},
		&cli.FloatFlag{Name: "threshold", Usage: "Minimum similarity score (default: configured threshold)", Destination: &threshold},
		&cli.StringFlag{Name: "after-date", Usage: "Only memories created at or after this ISO-8601 date", Destination: &afterDate},
		&cli.StringFlag{Name: "before-date", Usage: "Only memories created at or before this ISO-8601 date", Destination: &beforeDate},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search memories by semantic similarity",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			query, err := requireArg(c, "query")
			if err != nil {
				return err
			}

			input := usecase.SearchInput{
				Query:      query,
				Project:    project,
				Tags:       splitTags(tags),
				Limit:      limit,
				AfterDate:  afterDate,
				BeforeDate: beforeDate,
			}
			if c.IsSet("threshold") {
				input.Threshold = &threshold
			}

			results, err := uc.Memory.SearchMemory(ctx, input)
			if err != nil {
				return err
			}

			w := writer(c)
			if len(results) == 0 {
				warnColor.Fprintln(w, "No memories found")
				return nil
			}
			for _, r := range results {
				printResult(w, r)
			}
			return nil
		}),
	}
}

func cmdList() *cli.Command {
	var engineCfg engineConfig
	var (
		project string
		tags    string
		page    int
		limit   int
		sort    string
		query   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{Name: "project", Usage: "Restrict to a project", Destination: &project},
		&cli.StringFlag{Name: "tags", Usage: "Comma separated tags, any of which must match", Destination: &tags},
		&cli.IntFlag{Name: "page", Usage: "Page number starting at 1", Value: 1, Destination: &page},
		&cli.IntFlag{Name: "limit", Usage: "Items per page", Value: usecase.DefaultListLimit, Destination: &limit},
		&cli.StringFlag{Name: "sort", Usage: "Sort order (date, relevance)", Value: string(model.SortByDate), Destination: &sort},
		&cli.StringFlag{Name: "query", Usage: "Query used by relevance ordering", Destination: &query},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:  "list",
		Usage: "List memories page by page",
		Flags: flags,
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			result, err := uc.Memory.ListMemories(ctx, usecase.ListInput{
				Project: project,
				Tags:    splitTags(tags),
				Page:    page,
				Limit:   limit,
				Sort:    model.SortOrder(sort),
				Query:   query,
			})
			if err != nil {
				return err
			}

			w := writer(c)
			for _, r := range result.Memories {
				printResult(w, r)
			}
			totalPages := 0
			if limit > 0 {
				totalPages = (result.Total + limit - 1) / limit
			}
			metaColor.Fprintf(w, "page %d/%d, %d memories\n", page, totalPages, result.Total)
			return nil
		}),
	}
}

func cmdDelete() *cli.Command {
	var engineCfg engineConfig

	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a memory",
		ArgsUsage: "<id>",
		Flags:     engineCfg.Flags(),
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			id, err := requireArg(c, "id")
			if err != nil {
				return err
			}

			deleted, err := uc.Memory.DeleteMemory(ctx, model.MemoryID(id))
			if err != nil {
				return err
			}
			if !deleted {
				return goerr.Wrap(usecase.ErrMemoryNotFound, "nothing deleted", goerr.V(model.MemoryIDKey, id))
			}

			scoreColor.Fprintf(writer(c), "Deleted %s\n", id)
			return nil
		}),
	}
}

func cmdArchive() *cli.Command {
	var engineCfg engineConfig

	return &cli.Command{
		Name:      "archive",
		Usage:     "Hide a memory from search and listing without deleting it",
		ArgsUsage: "<id>",
		Flags:     engineCfg.Flags(),
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			id, err := requireArg(c, "id")
			if err != nil {
				return err
			}

			archived, err := uc.Memory.ArchiveMemory(ctx, model.MemoryID(id))
			if err != nil {
				return err
			}
			if !archived {
				return goerr.Wrap(usecase.ErrMemoryNotFound, "nothing archived", goerr.V(model.MemoryIDKey, id))
			}

			scoreColor.Fprintf(writer(c), "Archived %s\n", id)
			return nil
		}),
	}
}

func cmdBulkDelete() *cli.Command {
	var engineCfg engineConfig
	var project, beforeDate string
	var all bool

	flags := []cli.Flag{
		&cli.StringFlag{Name: "project", Usage: "Delete only memories of this project", Destination: &project},
		&cli.StringFlag{Name: "before-date", Usage: "Delete only memories created before this ISO-8601 date", Destination: &beforeDate},
		&cli.BoolFlag{Name: "all", Usage: "Confirm deleting every memory when no filter is given", Destination: &all},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:  "bulk-delete",
		Usage: "Permanently delete memories matching the filters, archived ones included",
		Flags: flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if project == "" && beforeDate == "" && !all {
				return ctx, errUnscopedBulkDelete
			}
			return ctx, nil
		},
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			count, err := uc.Memory.BulkDelete(ctx, usecase.BulkDeleteInput{
				Project:    project,
				BeforeDate: beforeDate,
			})
			if err != nil {
				return err
			}

			scoreColor.Fprintf(writer(c), "Deleted %d memories\n", count)
			return nil
		}),
	}
}

func cmdStats() *cli.Command {
	var engineCfg engineConfig

	return &cli.Command{
		Name:  "stats",
		Usage: "Show memory statistics",
		Flags: engineCfg.Flags(),
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			stats, err := uc.Memory.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(writer(c), stats)
			return nil
		}),
	}
}

func cmdExport() *cli.Command {
	var engineCfg engineConfig
	var format, project, output string

	flags := []cli.Flag{
		&cli.StringFlag{Name: "format", Usage: "Export format (json, markdown)", Value: string(model.ExportJSON), Destination: &format},
		&cli.StringFlag{Name: "project", Usage: "Export only this project", Destination: &project},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to file instead of stdout", Destination: &output},
	}
	flags = append(flags, engineCfg.Flags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export memories as JSON or markdown",
		Flags: flags,
		Action: withEngine(&engineCfg, func(ctx context.Context, c *cli.Command, uc *usecase.UseCases) error {
			result, err := uc.Memory.Export(ctx, model.ExportFormat(format), project)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := writer(c).Write(result.Body)
				return err
			}

			if err := os.WriteFile(output, result.Body, 0o600); err != nil {
				return goerr.Wrap(err, "failed to write export file", goerr.V("path", output))
			}
			fmt.Fprintf(writer(c), "Exported to %s\n", output)
			return nil
		}),
	}
}

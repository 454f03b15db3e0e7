package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// engineConfig groups the flag sets every command that touches the store needs.
type engineConfig struct {
	repo       config.Repository
	vectorizer config.Vectorizer
	memory     config.Memory
}

func (e *engineConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, e.repo.Flags()...)
	flags = append(flags, e.vectorizer.Flags()...)
	flags = append(flags, e.memory.Flags()...)
	return flags
}

// configure opens the repository and builds the use cases. The returned
// cleanup closes the repository and releases the embedding cache.
func (e *engineConfig) configure(ctx context.Context, opts ...usecase.Option) (*usecase.UseCases, func(), error) {
	memOpts, err := e.memory.Configure()
	if err != nil {
		return nil, nil, err
	}

	vec, err := e.vectorizer.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure vectorizer")
	}

	repo, err := e.repo.Configure(ctx)
	if err != nil {
		closeVectorizer(vec)
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}

	logging.From(ctx).Debug("Engine configuration",
		"repository", e.repo,
		"vectorizer", e.vectorizer,
		"memory", e.memory)

	cleanup := func() {
		safe.Close(ctx, "repository", repo)
		closeVectorizer(vec)
	}

	opts = append([]usecase.Option{usecase.WithMemoryOptions(memOpts...)}, opts...)
	return usecase.New(repo, vec, opts...), cleanup, nil
}

func closeVectorizer(v interfaces.Vectorizer) {
	if c, ok := v.(*embedding.Cached); ok {
		c.Close()
	}
}

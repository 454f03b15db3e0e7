package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var engineCfg engineConfig
	var llmCfg config.LLM
	var project string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"user"},
			Usage:       "Project that scopes recalled and saved memories, typically a user ID",
			Required:    true,
			Destination: &project,
		},
	}
	flags = append(flags, engineCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with an LLM that recalls and saves memories",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			llm, err := llmCfg.Configure(ctx, &engineCfg.vectorizer)
			if err != nil {
				return goerr.Wrap(err, "failed to configure chat model")
			}

			uc, cleanup, err := engineCfg.configure(ctx, usecase.WithLLMClient(llm))
			if err != nil {
				return err
			}
			defer cleanup()

			return runChat(ctx, reader(c), writer(c), uc.Chat, project)
		},
	}
}

func reader(c *cli.Command) io.Reader {
	if r := c.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

// runChat reads one message per line until EOF, "quit" or "exit".
func runChat(ctx context.Context, r io.Reader, w io.Writer, chat *usecase.ChatUseCase, project string) error {
	headingColor.Fprintf(w, "Chatting as %s. Type 'quit' to exit.\n", project)

	var history []usecase.ChatTurn
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "\nYou: ")
		if !scanner.Scan() {
			break
		}

		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if lower := strings.ToLower(message); lower == "quit" || lower == "exit" {
			break
		}

		reply, err := chat.Reply(ctx, usecase.ChatInput{
			Project: project,
			Message: message,
			History: history,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(w)
		for _, m := range reply.Memories {
			if m.Score != nil {
				metaColor.Fprintf(w, "  recalled (score=%.2f): %s\n", *m.Score, m.Text)
			}
		}
		scoreColor.Fprint(w, "AI: ")
		fmt.Fprintln(w, reply.Answer)

		switch {
		case reply.Saved != nil && reply.Saved.Duplicate:
			metaColor.Fprintf(w, "  already remembered: %s\n", reply.Fact)
		case reply.Saved != nil:
			metaColor.Fprintf(w, "  remembered: %s\n", reply.Fact)
		}

		history = append(history,
			usecase.ChatTurn{Role: usecase.RoleUser, Text: message},
			usecase.ChatTurn{Role: usecase.RoleAssistant, Text: reply.Answer},
		)
	}

	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to read chat input")
	}
	fmt.Fprintln(w, "\nGoodbye.")
	return nil
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const (
	// ChatMemoryLimit and ChatMemoryThreshold bound the memories injected into a prompt.
	ChatMemoryLimit     = 3
	ChatMemoryThreshold = 0.2

	// ChatHistoryLimit is the number of previous messages sent with each turn.
	ChatHistoryLimit = 5

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSummaryTags are attached to facts saved from a conversation.
var ChatSummaryTags = []string{"auto-summary", "chat"}

const chatSystemPrompt = `You are an AI assistant.
Give a personalized answer to the user's latest message based on the long-term memories and the recent conversation below.`

const factSystemPrompt = `You are a fact-summarizing assistant.
Based on the user's message and the AI's response, summarize the core facts worth remembering long-term in one or two sentences.
Example: "The user's name is John" or "The user likes the color blue".
If there are no new facts to remember, reply only with "None".`

type ChatTurn struct {
	Role string
	Text string
}

type ChatInput struct {
	Project string // scopes both retrieval and saved facts, typically a user ID
	Message string
	History []ChatTurn
}

type ChatReply struct {
	Answer   string
	Memories []*model.SearchResult
	Fact     string      // empty when nothing new was worth remembering
	Saved    *SaveResult // nil when no fact was saved
}

// ChatUseCase answers messages with an LLM, grounding the answer on stored
// memories and saving new facts the conversation reveals.
type ChatUseCase struct {
	memory *MemoryUseCase
	llm    gollem.LLMClient
}

func NewChatUseCase(memory *MemoryUseCase, llm gollem.LLMClient) *ChatUseCase {
	return &ChatUseCase{memory: memory, llm: llm}
}

// Reply runs one turn: retrieve related memories, answer, then store the new fact if any.
// Failures while summarizing or saving the fact are logged and do not fail the turn.
func (uc *ChatUseCase) Reply(ctx context.Context, input ChatInput) (*ChatReply, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if input.Project == "" {
		return nil, ErrMissingChatUser
	}

	threshold := ChatMemoryThreshold
	memories, err := uc.memory.SearchMemory(ctx, SearchInput{
		Query:     message,
		Project:   input.Project,
		Limit:     ChatMemoryLimit,
		Threshold: &threshold,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve memories for chat", goerr.V(model.ProjectKey, input.Project))
	}

	answer, err := uc.generate(ctx, buildChatPrompt(memories), renderConversation(input.History, message))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate chat answer")
	}
	if answer == "" {
		return nil, ErrEmptyAnswer
	}

	reply := &ChatReply{Answer: answer, Memories: memories}

	fact, err := uc.summarize(ctx, message, answer)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to summarize chat facts")
		return reply, nil
	}
	if fact == "" {
		logging.From(ctx).Debug("no new fact in chat turn", "project", input.Project)
		return reply, nil
	}
	reply.Fact = fact

	saved, err := uc.memory.SaveMemory(ctx, SaveInput{
		Text:    fact,
		Project: input.Project,
		Tags:    ChatSummaryTags,
	})
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to save chat fact")
		return reply, nil
	}
	reply.Saved = saved

	return reply, nil
}

func (uc *ChatUseCase) summarize(ctx context.Context, message, answer string) (string, error) {
	prompt := fmt.Sprintf("Summarize the core facts from the following conversation:\nUser: %s\nAI: %s", message, answer)
	fact, err := uc.generate(ctx, factSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	return parseFact(fact), nil
}

func (uc *ChatUseCase) generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	session, err := uc.llm.NewSession(ctx, gollem.WithSessionSystemPrompt(systemPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(prompt)})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	return strings.TrimSpace(strings.Join(resp.Texts, "")), nil
}

// parseFact returns the summarized fact, or "" when the model found nothing new.
func parseFact(text string) string {
	fact := strings.TrimSpace(text)
	lower := strings.ToLower(strings.TrimRight(fact, "."))
	if lower == "" || lower == "none" || strings.Contains(lower, "no new facts") {
		return ""
	}
	return fact
}

func buildChatPrompt(memories []*model.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(chatSystemPrompt)
	if len(memories) == 0 {
		sb.WriteString("\n\n(No relevant long-term memory)")
		return sb.String()
	}

	sb.WriteString("\n\n--- Long-term memory ---\n")
	for _, m := range memories {
		sb.WriteString("- ")
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderConversation(history []ChatTurn, message string) string {
	if len(history) > ChatHistoryLimit {
		history = history[len(history)-ChatHistoryLimit:]
	}

	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, turn := range history {
			role := "User"
			if turn.Role == RoleAssistant {
				role = "Assistant"
			}
			fmt.Fprintf(&sb, "%s: %s\n", role, turn.Text)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(message)
	return sb.String()
}

package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/config"
	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

type Client struct {
	api     openai.Client
	key     string
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		api:     openai.NewClient(option.WithAPIKey(cfg.OpenAIKey)),
		key:     cfg.OpenAIKey,
		model:   cfg.OpenAIModel,
		timeout: cfg.OpenAITimeout,
		log:     log,
	}
}

// Summarize turns assembled report statistics into 2-3 sentences of prose.
// Callers are expected to fall back to a templated summary on error.
func (c *Client) Summarize(ctx context.Context, doc domain.ReportDocument) (string, error) {
	if strings.TrimSpace(c.key) == "" {
		return "", errors.New("openai: missing key")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a helpful assistant that summarizes developer work activity. Be concise, professional, and encouraging."),
			openai.UserMessage(buildPrompt(doc)),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(doc domain.ReportDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following developer work data, generate a concise, professional summary paragraph:\n\n")
	fmt.Fprintf(&b, "Date Range: %s to %s\n\n", doc.DateRange.Start, doc.DateRange.End)
	fmt.Fprintf(&b, "Statistics:\n")
	fmt.Fprintf(&b, "- Total tickets worked on: %d\n", doc.Stats.TotalTickets)
	fmt.Fprintf(&b, "- Total commits made: %d\n", doc.Stats.TotalCommits)
	fmt.Fprintf(&b, "- Tickets completed (moved to Done): %d\n", doc.Stats.TicketsCompleted)
	fmt.Fprintf(&b, "- Total time logged: %s\n", doc.Stats.TotalTimeLoggedDisplay)
	fmt.Fprintf(&b, "- Unlinked commits (no ticket reference): %d\n", doc.Stats.UnlinkedCommits)
	fmt.Fprintf(&b, "- Non-code activities: %d\n\n", doc.Stats.NonCodeActivities)
	fmt.Fprintf(&b, "Top Tickets Worked On:\n%s\n\n", formatTickets(doc.Tickets))
	fmt.Fprintf(&b, "Generate a 2-3 sentence summary that sounds natural and informative. ")
	fmt.Fprintf(&b, "Focus on productivity and accomplishments. Mention any concerns like unlinked commits if they exist.")
	return b.String()
}

func formatTickets(tickets []domain.TicketDetail) string {
	if len(tickets) == 0 {
		return "No tickets found"
	}
	if len(tickets) > 5 {
		tickets = tickets[:5]
	}
	lines := make([]string, 0, len(tickets))
	for _, t := range tickets {
		title := t.Title
		if len(title) > 50 {
			title = title[:50]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%d commits)", t.Key, title, t.CommitsCount))
	}
	return strings.Join(lines, "\n")
}

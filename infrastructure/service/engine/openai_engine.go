package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/brandpilot/brandpilot/application/port/outbound"
)

const systemPrompt = "You write short, factual web content that corrects false statements AI assistants make about a brand. " +
	"Answer with a title on the first line followed by the page copy. No preamble."

// OpenAIEngine drafts briefs with one OpenAI chat model
type OpenAIEngine struct {
	client        *openai.Client
	model         string
	costPer1K     float64
	maxCompletion int
}

// NewOpenAIEngine builds an engine for model. costPer1K is the blended price
// per thousand tokens charged to the budget ledger.
func NewOpenAIEngine(apiKey, model string, costPer1K float64) *OpenAIEngine {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIEngine{
		client:        openai.NewClient(apiKey),
		model:         model,
		costPer1K:     costPer1K,
		maxCompletion: 800,
	}
}

func (e *OpenAIEngine) Name() string { return "openai:" + e.model }

func (e *OpenAIEngine) Draft(ctx context.Context, req outbound.BriefRequest) (*outbound.BriefDraft, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		MaxCompletionTokens: e.maxCompletion,
		Temperature:         0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	title, body := SplitTitle(resp.Choices[0].Message.Content)
	return &outbound.BriefDraft{
		Title:   title,
		Content: body,
		Engine:  e.Name(),
		Cost: outbound.CostEvent{
			Provider:    "openai",
			Amount:      float64(resp.Usage.TotalTokens) / 1000 * e.costPer1K,
			Description: fmt.Sprintf("brief draft (%s, %d tokens)", e.model, resp.Usage.TotalTokens),
		},
	}, nil
}

// BuildPrompt renders the user prompt for a brief request
func BuildPrompt(req outbound.BriefRequest) string {
	var b strings.Builder
	b.WriteString("Write a corrective content brief.\n")
	if req.TriggeringQuery != "" {
		fmt.Fprintf(&b, "Question users ask: %s\n", req.TriggeringQuery)
	}
	if req.FalseClaim != "" {
		fmt.Fprintf(&b, "False claim currently given by AI assistants: %s\n", req.FalseClaim)
	}
	if req.Target != "" {
		fmt.Fprintf(&b, "The copy will be published at: %s\n", req.Target)
	}
	if req.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", req.Priority)
	}
	return b.String()
}

// SplitTitle takes the first non-empty line as the title
func SplitTitle(text string) (string, string) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	title := strings.TrimSpace(strings.TrimLeft(first, "# "))
	body := strings.TrimSpace(rest)
	if body == "" {
		body = title
	}
	return title, body
}

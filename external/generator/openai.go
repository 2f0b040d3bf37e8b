package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/zadankai/internal/conversation"
	"github.com/foxseedlab/zadankai/internal/generator"
	"github.com/sashabaranov/go-openai"
)

const generationTemperature = 0.8

type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) generator.Generator {
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (g *OpenAIGenerator) OpeningTurns(ctx context.Context, req generator.TurnsRequest) ([]generator.Turn, error) {
	system := fmt.Sprintf(
		"You are staging a lively panel discussion in %s about: %s.\n"+
			"The panelists are, in order: %s. The first panelist chairs the meeting and opens it.\n"+
			"Write each turn on its own line as 'Name: statement'. Produce exactly %d turns.",
		req.Language, req.Topic, strings.Join(req.Characters, ", "), req.Count)
	return g.generateTurns(ctx, req, system, "Open the discussion.")
}

func (g *OpenAIGenerator) NextTurns(ctx context.Context, req generator.TurnsRequest) ([]generator.Turn, error) {
	system := fmt.Sprintf(
		"You are continuing a panel discussion in %s about: %s.\n"+
			"The panelists are, in order: %s.\n"+
			"Write each turn on its own line as 'Name: statement'. Produce exactly %d turns.\n"+
			"Do not repeat earlier statements.",
		req.Language, req.Topic, strings.Join(req.Characters, ", "), req.Count)
	instruction := "Continue the discussion from where it stopped."
	if req.DirectTo != "" {
		instruction = fmt.Sprintf("Continue the discussion; %s answers first.", req.DirectTo)
	}
	return g.generateTurns(ctx, req, system, instruction)
}

func (g *OpenAIGenerator) Interjection(ctx context.Context, req generator.InterjectionRequest) (string, error) {
	system := fmt.Sprintf(
		"You are %s, chairing a panel discussion in %s about: %s.\n"+
			"A listener named %s has raised their hand.\n"+
			"Reply with one short spoken line, addressed to %s by name, inviting them to speak now. "+
			"Nothing but that single line.",
		req.Chair, req.Language, req.Topic, req.HumanName, req.HumanName)
	text, err := g.complete(ctx, system, historyPrompt(req.History, "Invite the listener."))
	if err != nil {
		return "", fmt.Errorf("generate interjection: %w", err)
	}
	return text, nil
}

func (g *OpenAIGenerator) Summary(ctx context.Context, req generator.SummaryRequest) (string, error) {
	system := fmt.Sprintf(
		"You are %s, chairing a panel discussion in %s about: %s.\n"+
			"Close the meeting of %s with a spoken summary of the discussion's main points. "+
			"Speak in first person, a single paragraph.",
		req.Chair, req.Language, req.Topic, req.Date)
	text, err := g.complete(ctx, system, historyPrompt(req.History, "Summarize and close the meeting."))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return text, nil
}

func (g *OpenAIGenerator) generateTurns(ctx context.Context, req generator.TurnsRequest, system, instruction string) ([]generator.Turn, error) {
	text, err := g.complete(ctx, system, historyPrompt(req.History, instruction))
	if err != nil {
		return nil, fmt.Errorf("generate turns: %w", err)
	}
	turns := ParseTurns(text, req.Characters)
	if len(turns) == 0 {
		return nil, fmt.Errorf("generator returned no parseable turns")
	}
	if len(turns) > req.Count {
		turns = turns[:req.Count]
	}
	return turns, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: generationTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("completion received", "model", g.model, "chars", len(text))
	return text, nil
}

func historyPrompt(history []conversation.Message, instruction string) string {
	var b strings.Builder
	for _, m := range history {
		if m.Text == "" {
			continue
		}
		b.WriteString(m.Speaker)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(instruction)
	return b.String()
}

// ParseTurns extracts 'Name: statement' lines, keeping only known speakers.
// A line prefixed with an unknown speaker is dropped entirely; it must never
// be voiced as somebody else. Only lines without a speaker-prefix shape are
// folded into the previous turn, since generators occasionally wrap long
// statements.
func ParseTurns(text string, characters []string) []generator.Turn {
	known := make(map[string]string, len(characters))
	for _, c := range characters {
		known[strings.ToLower(c)] = c
	}
	var turns []generator.Turn
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if ok && looksLikeSpeaker(name) {
			canonical, found := known[strings.ToLower(strings.TrimSpace(name))]
			if !found {
				continue
			}
			turns = append(turns, generator.Turn{
				Speaker: canonical,
				Text:    strings.TrimSpace(rest),
			})
			continue
		}
		if len(turns) > 0 {
			turns[len(turns)-1].Text += " " + line
		}
	}
	return turns
}

// looksLikeSpeaker reports whether the text before a colon is plausibly a
// speaker label rather than a colon inside a wrapped sentence.
func looksLikeSpeaker(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 32 {
		return false
	}
	if strings.ContainsAny(name, ".!?,") {
		return false
	}
	return len(strings.Fields(name)) <= 2
}

package report

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/llm"
)

// TemplateModel is recorded as the model of reports rendered without an LLM.
const TemplateModel = "template"

// Draft is generated report content.
type Draft struct {
	Title    string
	Markdown string
	Model    string
}

// Generator writes report drafts with a language model, falling back to the
// deterministic template when none is configured or the call fails.
type Generator struct {
	provider  llm.Provider
	maxTokens int
	logger    *slog.Logger
}

// NewGenerator creates a Generator. provider may be nil.
func NewGenerator(provider llm.Provider, maxTokens int, logger *slog.Logger) *Generator {
	return &Generator{
		provider:  provider,
		maxTokens: maxTokens,
		logger:    logger.With(slog.String("component", "report_generator")),
	}
}

// Write drafts a report for in.
func (g *Generator) Write(ctx context.Context, in Inputs) Draft {
	if g.provider == nil {
		return templateDraft(in)
	}

	system, prompt := BuildPrompt(in)
	resp, err := g.provider.Complete(ctx, llm.Request{
		System:    system,
		Prompt:    prompt,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		g.logger.WarnContext(ctx, "llm draft failed, using template",
			slog.String("provider", g.provider.Name()),
			slog.String("tenant", in.Tenant.Slug),
			slog.String("kind", string(in.Kind)),
			slog.String("error", err.Error()),
		)
		return templateDraft(in)
	}

	title, md := EnsureTitle(resp.Text, in.DefaultTitle())
	if strings.TrimSpace(md) == "" {
		return templateDraft(in)
	}
	model := resp.Model
	if model == "" {
		model = g.provider.Model()
	}
	return Draft{Title: title, Markdown: md, Model: model}
}

func templateDraft(in Inputs) Draft {
	md := RenderTemplate(in)
	return Draft{Title: in.DefaultTitle(), Markdown: md, Model: TemplateModel}
}

// EnsureTitle strips a surrounding code fence and returns the H1 title of md,
// prepending fallback as the H1 when the opening lines have none.
func EnsureTitle(md, fallback string) (title, out string) {
	md = strings.TrimSpace(md)
	if strings.HasPrefix(md, "```") {
		if nl := strings.IndexByte(md, '\n'); nl >= 0 {
			md = md[nl+1:]
		}
		md = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(md), "```"))
	}
	if md == "" {
		return fallback, ""
	}

	// Models sometimes open with a line of chatter before the heading; an H1
	// within the first lines wins and the preamble is dropped.
	lines := strings.Split(md, "\n")
	for i, line := range lines[:min(len(lines), titleScanLines)] {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "# ") {
			continue
		}
		if t := strings.TrimSpace(strings.TrimPrefix(line, "# ")); t != "" {
			return t, strings.Join(lines[i:], "\n") + "\n"
		}
	}
	return fallback, "# " + fallback + "\n\n" + md + "\n"
}

// titleScanLines bounds how far EnsureTitle looks for an existing H1.
const titleScanLines = 8

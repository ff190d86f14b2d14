package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic talks to the Messages API.
type Anthropic struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(opts Options) *Anthropic {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(2),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Model == "" {
		opts.Model = string(anthropic.ModelClaudeSonnet4_5)
	}
	return &Anthropic{client: anthropic.NewClient(reqOpts...), opts: opts}
}

func (p *Anthropic) Name() string  { return "anthropic" }
func (p *Anthropic) Model() string { return p.opts.Model }

// Complete sends one user turn. Claude has no JSON mode, so JSON requests get
// an extra instruction in the system prompt.
func (p *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	req = p.opts.withDefaults(req)
	ctx, cancel := p.opts.timeoutCtx(ctx)
	defer cancel()

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object and nothing else.")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.opts.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: anthropic: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return Response{}, emptyResponse("anthropic")
	}
	model := string(msg.Model)
	if model == "" {
		model = p.opts.Model
	}
	return Response{Text: b.String(), Model: model}, nil
}

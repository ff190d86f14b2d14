package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	opts   Options
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, opts: opts}, nil
}

func (p *Gemini) Name() string  { return "gemini" }
func (p *Gemini) Model() string { return p.opts.Model }

// Complete runs GenerateContent with the system prompt as system instruction.
func (p *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	req = p.opts.withDefaults(req)
	ctx, cancel := p.opts.timeoutCtx(ctx)
	defer cancel()

	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.opts.Model, genai.Text(req.Prompt), gc)
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Response{}, emptyResponse("gemini")
	}
	return Response{Text: text, Model: p.opts.Model}, nil
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAI talks to the Chat Completions API. A base URL points it at any
// compatible gateway such as OpenRouter.
type OpenAI struct {
	client openai.Client
	opts   Options
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(opts Options) *OpenAI {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(2),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Model == "" {
		opts.Model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAI{client: openai.NewClient(reqOpts...), opts: opts}
}

func (p *OpenAI) Name() string  { return "openai" }
func (p *OpenAI) Model() string { return p.opts.Model }

// Complete sends a system and a user message.
func (p *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	req = p.opts.withDefaults(req)
	ctx, cancel := p.opts.timeoutCtx(ctx)
	defer cancel()

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(p.opts.Model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:         openai.Float(req.Temperature),
	}
	if req.JSON {
		jsonObj := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &jsonObj}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("llm: openai: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, emptyResponse("openai")
	}
	model := resp.Model
	if model == "" {
		model = p.opts.Model
	}
	return Response{Text: resp.Choices[0].Message.Content, Model: model}, nil
}

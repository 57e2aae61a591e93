package ai

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"mentor/pkg/errors"
)

const defaultGeminiChatModel = "gemini-2.0-flash"

// Ensure GeminiProvider implements ChatProvider
var _ ChatProvider = (*GeminiProvider)(nil)

// GeminiProvider implements chat completions via the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini chat provider.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &GeminiProvider{client: client}, nil
}

// Name returns provider name.
func (p *GeminiProvider) Name() string { return "gemini" }

// Chat sends a generate-content request to the Gemini API.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultGeminiChatModel
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	var decls []*genai.FunctionDeclaration
	for _, def := range req.Tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 def.Name,
			Description:          def.Description,
			ParametersJsonSchema: def.Parameters,
		})
	}
	if len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents, err := toGeminiContents(req.Messages, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "gemini generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.Wrap(errors.ErrInternal, "gemini returned no candidates")
	}

	out := &ChatResponse{
		Model:        model,
		Content:      resp.Text(),
		FinishReason: FinishReasonStop,
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for _, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, errors.Wrap(err, "marshal gemini tool call arguments")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: string(args),
		})
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		out.FinishReason = FinishReasonLength
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishReasonToolCalls
	}

	return out, nil
}

func toGeminiContents(msgs []Message, cfg *genai.GenerateContentConfig) ([]*genai.Content, error) {
	toolNames := make(map[string]string) // tool call id -> function name

	var contents []*genai.Content
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
		case RoleUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				contents = append(contents, &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: msg.Content}},
				})
				continue
			}
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, errors.Wrapf(err, "unmarshal arguments for tool %s", tc.Name)
					}
				}
				toolNames[tc.ID] = tc.Name
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: args,
				}})
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case RoleTool:
			name := msg.Name
			if name == "" {
				name = toolNames[msg.ToolCallID]
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					Name:     name,
					Response: map[string]any{"result": msg.Content},
				}}},
			})
		}
	}
	return contents, nil
}

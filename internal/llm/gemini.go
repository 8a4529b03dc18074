package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiAdapter drives Google's Gemini models through the genai SDK.
type GeminiAdapter struct {
	client *genai.Client
	model  string
}

const defaultGeminiModel = "gemini-2.5-flash"

// Static generation-time overrides: the backend defaults to aggressive
// content filtering that rejects harmless persona prompts, so every
// category is explicitly opted out. These are configuration, not per
// request decisions.
var safetyOverrides = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
}

func NewGeminiAdapter(ctx context.Context, apiKey, model string) (*GeminiAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiAdapter{client: client, model: model}, nil
}

func (a *GeminiAdapter) StreamChat(ctx context.Context, prompt Prompt, onDelta DeltaHandler) (Result, error) {
	contents, config := preparePrompt(prompt)

	var out strings.Builder
	for resp, err := range a.client.Models.GenerateContentStream(ctx, a.model, contents, config) {
		if err != nil {
			// Deltas already forwarded stay forwarded; the partial text is
			// preserved for persistence.
			return Result{Text: out.String()}, fmt.Errorf("gemini stream: %w", err)
		}
		delta := chunkText(resp)
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Result{Text: out.String()}, err
			}
		}
	}
	return Result{Text: out.String()}, nil
}

func (a *GeminiAdapter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	contents, config := preparePrompt(prompt)

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return chunkText(resp), nil
}

func preparePrompt(prompt Prompt) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		SafetySettings: safetyOverrides,
	}
	if strings.TrimSpace(prompt.System) != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		}
	}

	contents := make([]*genai.Content, 0, len(prompt.Messages))
	for _, m := range prompt.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents, config
}

func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	// A chunk may split its text across several parts.
	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	return out.String()
}

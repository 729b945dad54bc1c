package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIOptions configures the chat-completion backed generator.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Generator
	OnFallback   func(reason string, err error)
}

// OpenAIGenerator produces stories via the OpenAI chat completions API.
type OpenAIGenerator struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	fallback     Generator
	onFallback   func(reason string, err error)
}

const openAIDefaultTimeout = 60 * time.Second

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIGenerator builds the generator. The API key may be empty; each
// call then routes straight to the fallback.
func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIGenerator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		fallback:     opts.Fallback,
		onFallback:   opts.OnFallback,
	}
}

// Story generates a full paged story.
func (o *OpenAIGenerator) Story(ctx context.Context, req StoryRequest) (*GeneratedStory, error) {
	req.PageCount = normalizePageCount(req.PageCount)
	if o.apiKey == "" {
		return o.storyFallback(ctx, req, "missing_api_key", nil)
	}
	prompt := fmt.Sprintf(
		`Write a children's storybook as JSON with keys "title" (string) and "pages" (array of exactly %d strings, one paragraph each). Story idea: %s. Audience: %s. Visual style: %s.`,
		req.PageCount, req.Prompt, coalesce(req.Audience, "children"), coalesce(req.Style, "storybook illustration"))
	if req.Title != "" {
		prompt += fmt.Sprintf(` Use the title %q.`, req.Title)
	}
	var out GeneratedStory
	if err := o.chatJSON(ctx, prompt, &out); err != nil {
		return o.storyFallback(ctx, req, "request_failed", err)
	}
	if out.Title == "" || len(out.Pages) == 0 {
		return o.storyFallback(ctx, req, "empty_response", errors.New("story response missing title or pages"))
	}
	return &out, nil
}

// Premise invents a story idea for an auto-story job.
func (o *OpenAIGenerator) Premise(ctx context.Context, req PremiseRequest) (*StoryRequest, error) {
	if o.apiKey == "" {
		return o.premiseFallback(ctx, req, "missing_api_key", nil)
	}
	prompt := fmt.Sprintf(
		`Invent a storybook premise as JSON with keys "title" and "prompt" (both strings). Genre: %s. Main character: %s. Audience: %s.`,
		req.Genre, coalesce(req.Character, "a curious child"), coalesce(req.Audience, "children"))
	var out struct {
		Title  string `json:"title"`
		Prompt string `json:"prompt"`
	}
	if err := o.chatJSON(ctx, prompt, &out); err != nil {
		return o.premiseFallback(ctx, req, "request_failed", err)
	}
	if out.Prompt == "" {
		return o.premiseFallback(ctx, req, "empty_response", errors.New("premise response missing prompt"))
	}
	return &StoryRequest{Title: out.Title, Prompt: out.Prompt, Audience: req.Audience}, nil
}

// Scenes splits an existing story into illustratable panels.
func (o *OpenAIGenerator) Scenes(ctx context.Context, req SceneRequest) ([]GeneratedScene, error) {
	if o.apiKey == "" {
		return o.scenesFallback(ctx, req, "missing_api_key", nil)
	}
	prompt := fmt.Sprintf(
		`Split the following story into comic panels as JSON with key "scenes": an array of objects with "description" and "image_prompt" strings. Audience: %s. Story: %s`,
		coalesce(req.Audience, "children"), req.Story)
	var out struct {
		Scenes []GeneratedScene `json:"scenes"`
	}
	if err := o.chatJSON(ctx, prompt, &out); err != nil {
		return o.scenesFallback(ctx, req, "request_failed", err)
	}
	if len(out.Scenes) == 0 {
		return o.scenesFallback(ctx, req, "empty_response", errors.New("scene response is empty"))
	}
	return out.Scenes, nil
}

func (o *OpenAIGenerator) chatJSON(ctx context.Context, userPrompt string, target any) error {
	payload := openAIChatRequest{
		Model:          o.model,
		Temperature:    0.7,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a storybook author that only responds with valid JSON."},
			{Role: "user", Content: userPrompt},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		req.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var chat openAIChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return errors.New("openai response has no choices")
	}
	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), target); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	return nil
}

func (o *OpenAIGenerator) storyFallback(ctx context.Context, req StoryRequest, reason string, cause error) (*GeneratedStory, error) {
	if o.fallback == nil {
		return nil, fallbackErr(reason, cause)
	}
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	return o.fallback.Story(ctx, req)
}

func (o *OpenAIGenerator) premiseFallback(ctx context.Context, req PremiseRequest, reason string, cause error) (*StoryRequest, error) {
	if o.fallback == nil {
		return nil, fallbackErr(reason, cause)
	}
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	return o.fallback.Premise(ctx, req)
}

func (o *OpenAIGenerator) scenesFallback(ctx context.Context, req SceneRequest, reason string, cause error) ([]GeneratedScene, error) {
	if o.fallback == nil {
		return nil, fallbackErr(reason, cause)
	}
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	return o.fallback.Scenes(ctx, req)
}

func fallbackErr(reason string, cause error) error {
	if cause == nil {
		return fmt.Errorf("story generation unavailable: %s", reason)
	}
	return fmt.Errorf("story generation failed (%s): %w", reason, cause)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Generator = (*OpenAIGenerator)(nil)

package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIOptions configures the image generation client.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Generator
	OnFallback   func(reason string, err error)
}

// OpenAIGenerator produces images via the OpenAI images API.
type OpenAIGenerator struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	fallback     Generator
	onFallback   func(reason string, err error)
}

const openAIDefaultTimeout = 90 * time.Second

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// NewOpenAIGenerator builds the generator. With an empty API key every
// call routes to the fallback.
func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "dall-e-3"
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

// Generate produces a single image asset.
func (o *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if o.apiKey == "" {
		return o.useFallback(ctx, req, "missing_api_key", nil)
	}
	prompt := req.Prompt
	if req.Style != "" {
		prompt = fmt.Sprintf("%s, in %s style", prompt, req.Style)
	}
	if req.SourceImageURL != "" {
		prompt = fmt.Sprintf("%s, based on the photo at %s", prompt, req.SourceImageURL)
	}
	payload := openAIImageRequest{
		Model:          o.model,
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return o.useFallback(ctx, req, "encode_request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", &buf)
	if err != nil {
		return o.useFallback(ctx, req, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, req, "request_failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return o.useFallback(ctx, req, "read_response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return o.useFallback(ctx, req, "bad_status",
			fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	var decoded openAIImageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return o.useFallback(ctx, req, "decode_response", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].B64JSON == "" {
		return o.useFallback(ctx, req, "empty_response", errors.New("image response has no data"))
	}
	data, err := base64.StdEncoding.DecodeString(decoded.Data[0].B64JSON)
	if err != nil {
		return o.useFallback(ctx, req, "decode_image", err)
	}
	return &Asset{Data: data, Format: "image/png"}, nil
}

func (o *OpenAIGenerator) useFallback(ctx context.Context, req GenerateRequest, reason string, cause error) (*Asset, error) {
	if o.fallback == nil {
		if cause == nil {
			return nil, fmt.Errorf("image generation unavailable: %s", reason)
		}
		return nil, fmt.Errorf("image generation failed (%s): %w", reason, cause)
	}
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	return o.fallback.Generate(ctx, req)
}

var _ Generator = (*OpenAIGenerator)(nil)

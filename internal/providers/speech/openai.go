package speech

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

	"github.com/rs/zerolog"
)

const (
	openAIDefaultTimeout = 60 * time.Second
	defaultOpenAIModel   = "tts-1"
	openAIResponseFormat = "mp3"
)

// OpenAIOptions configures the OpenAI speech client.
type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	Organization string
	HTTPClient   *http.Client
	Timeout      time.Duration
	Logger       zerolog.Logger
}

// OpenAIClient calls the OpenAI audio/speech endpoint.
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	model        string
	organization string
	client       *http.Client
	logger       zerolog.Logger
}

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIClient constructs a client with defaults applied.
func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = openAIDefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIClient{
		apiKey:       apiKey,
		baseURL:      baseURL,
		model:        model,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		logger:       opts.Logger,
	}, nil
}

// Synthesize renders req.Text as mp3.
func (c *OpenAIClient) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("openai: text is required")
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		return nil, errors.New("openai: voice is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	body, err := json.Marshal(openAISpeechRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: openAIResponseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail openAIErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return nil, fmt.Errorf("openai: %s (%s)", detail.Error.Message, coalesce(detail.Error.Code, detail.Error.Type))
		}
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(raw) == 0 {
		return nil, errors.New("openai: empty audio response")
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	c.logger.Debug().
		Str("model", model).
		Str("voice", voice).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(started)).
		Msg("openai: synthesized speech")
	return &Audio{Data: raw, ContentType: contentType, Extension: openAIResponseFormat}, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Synthesizer = (*OpenAIClient)(nil)

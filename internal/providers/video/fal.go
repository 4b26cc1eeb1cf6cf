package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	falDefaultTimeout  = 60 * time.Second
	falDefaultQueueURL = "https://queue.fal.run"
	falDefaultRunURL   = "https://fal.run"
	falDefaultModel    = "fal-ai/sync-lipsync"
)

// FalOptions configures the fal.ai client.
type FalOptions struct {
	APIKey     string
	QueueURL   string
	RunURL     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// FalClient talks to the fal.ai queue and synchronous run endpoints.
type FalClient struct {
	apiKey   string
	queueURL string
	runURL   string
	model    string
	client   *http.Client
	logger   zerolog.Logger
}

type falInput struct {
	AudioURL string `json:"audio_url"`
	VideoURL string `json:"video_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Avatar   string `json:"avatar_id,omitempty"`
}

type falQueueResponse struct {
	RequestID   string `json:"request_id"`
	ResponseURL string `json:"response_url"`
	StatusURL   string `json:"status_url"`
}

type falOutput struct {
	Video struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"video"`
}

type falErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// NewFalClient constructs a client with defaults applied.
func NewFalClient(opts FalOptions) (*FalClient, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	queueURL := strings.TrimRight(strings.TrimSpace(opts.QueueURL), "/")
	if queueURL == "" {
		queueURL = falDefaultQueueURL
	}
	runURL := strings.TrimRight(strings.TrimSpace(opts.RunURL), "/")
	if runURL == "" {
		runURL = falDefaultRunURL
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = falDefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = falDefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &FalClient{
		apiKey:   apiKey,
		queueURL: queueURL,
		runURL:   runURL,
		model:    model,
		client:   client,
		logger:   opts.Logger,
	}, nil
}

// Submit enqueues a render and returns its fal request id. The outcome is
// POSTed to webhookURL.
func (c *FalClient) Submit(ctx context.Context, req LipSyncRequest, webhookURL string) (string, error) {
	model := c.modelFor(req)
	endpoint := c.queueURL + "/" + model
	if webhookURL != "" {
		endpoint += "?fal_webhook=" + url.QueryEscape(webhookURL)
	}
	raw, err := c.post(ctx, endpoint, buildFalInput(req))
	if err != nil {
		return "", err
	}
	var decoded falQueueResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("fal: decode queue response: %w", err)
	}
	if decoded.RequestID == "" {
		return "", errors.New("fal: queue response missing request_id")
	}
	c.logger.Debug().
		Str("model", model).
		Str("request_id", decoded.RequestID).
		Str("job_id", req.RequestID).
		Msg("fal: queued lip-sync")
	return decoded.RequestID, nil
}

// Generate runs the model synchronously and blocks until the clip is ready.
func (c *FalClient) Generate(ctx context.Context, req LipSyncRequest) (*Asset, error) {
	model := c.modelFor(req)
	raw, err := c.post(ctx, c.runURL+"/"+model, buildFalInput(req))
	if err != nil {
		return nil, err
	}
	return decodeFalOutput(raw)
}

// Result fetches the output of a finished queue request.
func (c *FalClient) Result(ctx context.Context, model, requestID string) (*Asset, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, errors.New("fal: request id is required")
	}
	if model == "" {
		model = c.model
	}
	endpoint := fmt.Sprintf("%s/%s/requests/%s", c.queueURL, falAppID(model), url.PathEscape(requestID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fal: build request: %w", err)
	}
	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return decodeFalOutput(raw)
}

func (c *FalClient) modelFor(req LipSyncRequest) string {
	if m := strings.Trim(strings.TrimSpace(req.Model), "/"); m != "" {
		return m
	}
	return c.model
}

func (c *FalClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fal: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fal: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq)
}

func (c *FalClient) do(httpReq *http.Request) ([]byte, error) {
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fal: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fal: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail falErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && len(detail.Detail) > 0 {
			return nil, fmt.Errorf("fal: status %d: %s", resp.StatusCode, detailString(detail.Detail))
		}
		return nil, fmt.Errorf("fal: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

func buildFalInput(req LipSyncRequest) falInput {
	in := falInput{AudioURL: strings.TrimSpace(req.AudioURL), VideoURL: strings.TrimSpace(req.VideoURL)}
	if in.VideoURL == "" {
		avatar := strings.TrimSpace(req.Avatar)
		if strings.HasPrefix(avatar, "http://") || strings.HasPrefix(avatar, "https://") {
			in.ImageURL = avatar
		} else {
			in.Avatar = avatar
		}
	}
	return in
}

func decodeFalOutput(raw []byte) (*Asset, error) {
	var out falOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("fal: decode output: %w", err)
	}
	if strings.TrimSpace(out.Video.URL) == "" {
		return nil, errors.New("fal: output missing video url")
	}
	format := out.Video.ContentType
	if format == "" {
		format = "video/mp4"
	}
	return &Asset{URL: out.Video.URL, Format: format}, nil
}

// falAppID strips the endpoint path from a model id: queue status and result
// routes live under "<owner>/<app>".
func falAppID(model string) string {
	parts := strings.Split(strings.Trim(model, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "/")
}

// detailString flattens fal's "detail" field, which is either a string or a
// list of validation errors.
func detailString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return strings.TrimSpace(string(raw))
}

// FalWebhook is the body fal POSTs to the webhook URL of a queued request.
type FalWebhook struct {
	RequestID        string          `json:"request_id"`
	GatewayRequestID string          `json:"gateway_request_id"`
	Status           string          `json:"status"`
	Payload          json.RawMessage `json:"payload"`
	Error            string          `json:"error"`
	PayloadError     string          `json:"payload_error"`
}

// ParseFalWebhook decodes a webhook delivery.
func ParseFalWebhook(body []byte) (*FalWebhook, error) {
	var hook FalWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("fal: decode webhook: %w", err)
	}
	hook.Status = strings.ToUpper(strings.TrimSpace(hook.Status))
	if hook.Status != "OK" && hook.Status != "ERROR" {
		return nil, fmt.Errorf("fal: unknown webhook status %q", hook.Status)
	}
	return &hook, nil
}

// Asset extracts the rendered clip of a successful delivery.
func (h *FalWebhook) Asset() (*Asset, error) {
	if h.Status != "OK" {
		return nil, errors.New(h.FailureMessage())
	}
	if h.PayloadError != "" {
		return nil, fmt.Errorf("fal: %s", h.PayloadError)
	}
	return decodeFalOutput(h.Payload)
}

// FailureMessage describes why a delivery failed.
func (h *FalWebhook) FailureMessage() string {
	msg := strings.TrimSpace(h.Error)
	if len(h.Payload) > 0 && string(h.Payload) != "null" {
		var detail falErrorResponse
		if err := json.Unmarshal(h.Payload, &detail); err == nil && len(detail.Detail) > 0 {
			if msg != "" {
				msg += ": "
			}
			msg += detailString(detail.Detail)
		}
	}
	if msg == "" {
		msg = "fal: generation failed"
	}
	return msg
}

var (
	_ Generator      = (*FalClient)(nil)
	_ AsyncGenerator = (*FalClient)(nil)
)

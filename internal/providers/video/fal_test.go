package video

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestFalSubmitQueuesWithWebhook(t *testing.T) {
	var gotURL, gotAuth string
	var gotBody map[string]string
	client, err := NewFalClient(FalOptions{
		APIKey: "fal-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotURL = r.URL.String()
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			return jsonResponse(http.StatusOK, `{"request_id":"req-123","status_url":"x"}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewFalClient: %v", err)
	}
	id, err := client.Submit(context.Background(), LipSyncRequest{
		AudioURL: "https://cdn/a.mp3",
		VideoURL: "https://cdn/v.mp4",
	}, "https://api.example.com/v1/callbacks/fal?job_id=j1&sig=abc")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "req-123" {
		t.Fatalf("request id = %q", id)
	}
	if !strings.HasPrefix(gotURL, "https://queue.fal.run/fal-ai/sync-lipsync?fal_webhook=") {
		t.Fatalf("url = %q", gotURL)
	}
	if !strings.Contains(gotURL, "job_id%3Dj1%26sig%3Dabc") {
		t.Fatalf("webhook not escaped: %q", gotURL)
	}
	if gotAuth != "Key fal-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["audio_url"] != "https://cdn/a.mp3" || gotBody["video_url"] != "https://cdn/v.mp4" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestFalSubmitSurfacesValidationDetail(t *testing.T) {
	client, _ := NewFalClient(FalOptions{
		APIKey: "fal-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnprocessableEntity, `{"detail":[{"msg":"audio_url unreachable"}]}`), nil
		})},
	})
	_, err := client.Submit(context.Background(), LipSyncRequest{AudioURL: "https://cdn/a.mp3", Avatar: "anna"}, "")
	if err == nil || !strings.Contains(err.Error(), "audio_url unreachable") {
		t.Fatalf("err = %v", err)
	}
}

func TestFalGenerateDecodesVideo(t *testing.T) {
	var gotURL string
	client, _ := NewFalClient(FalOptions{
		APIKey: "fal-key",
		Model:  "fal-ai/ai-avatar",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotURL = r.URL.String()
			return jsonResponse(http.StatusOK, `{"video":{"url":"https://fal.media/out.mp4"}}`), nil
		})},
	})
	asset, err := client.Generate(context.Background(), LipSyncRequest{AudioURL: "https://cdn/a.mp3", Avatar: "https://cdn/face.png"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotURL != "https://fal.run/fal-ai/ai-avatar" {
		t.Fatalf("url = %q", gotURL)
	}
	if asset.URL != "https://fal.media/out.mp4" || asset.Format != "video/mp4" {
		t.Fatalf("asset = %+v", asset)
	}
}

func TestFalResultUsesAppID(t *testing.T) {
	var gotURL string
	client, _ := NewFalClient(FalOptions{
		APIKey: "fal-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotURL = r.URL.String()
			return jsonResponse(http.StatusOK, `{"video":{"url":"https://fal.media/out.mp4"}}`), nil
		})},
	})
	if _, err := client.Result(context.Background(), "fal-ai/sync-lipsync/v2", "req-9"); err != nil {
		t.Fatalf("Result: %v", err)
	}
	if gotURL != "https://queue.fal.run/fal-ai/sync-lipsync/requests/req-9" {
		t.Fatalf("url = %q", gotURL)
	}
}

func TestBuildFalInputAvatar(t *testing.T) {
	cases := []struct {
		name string
		req  LipSyncRequest
		want falInput
	}{
		{
			name: "video wins",
			req:  LipSyncRequest{AudioURL: "a", VideoURL: "v", Avatar: "anna"},
			want: falInput{AudioURL: "a", VideoURL: "v"},
		},
		{
			name: "avatar image",
			req:  LipSyncRequest{AudioURL: "a", Avatar: "https://cdn/face.png"},
			want: falInput{AudioURL: "a", ImageURL: "https://cdn/face.png"},
		},
		{
			name: "avatar preset",
			req:  LipSyncRequest{AudioURL: "a", Avatar: "anna"},
			want: falInput{AudioURL: "a", Avatar: "anna"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildFalInput(tc.req); got != tc.want {
				t.Fatalf("buildFalInput = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseFalWebhook(t *testing.T) {
	ok, err := ParseFalWebhook([]byte(`{"request_id":"req-1","status":"OK","payload":{"video":{"url":"https://fal.media/v.mp4"}}}`))
	if err != nil {
		t.Fatalf("parse ok: %v", err)
	}
	asset, err := ok.Asset()
	if err != nil || asset.URL != "https://fal.media/v.mp4" {
		t.Fatalf("asset = %+v, %v", asset, err)
	}

	failed, err := ParseFalWebhook([]byte(`{"request_id":"req-2","status":"ERROR","error":"Invalid status code: 422","payload":{"detail":"face not detected"}}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := failed.Asset(); err == nil {
		t.Fatal("expected asset error for failed delivery")
	}
	if msg := failed.FailureMessage(); msg != "Invalid status code: 422: face not detected" {
		t.Fatalf("FailureMessage = %q", msg)
	}

	if _, err := ParseFalWebhook([]byte(`{"request_id":"req-3","status":"IN_PROGRESS"}`)); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if _, err := ParseFalWebhook([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewFalClientRequiresKey(t *testing.T) {
	if _, err := NewFalClient(FalOptions{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestSyntheticIsDeterministic(t *testing.T) {
	s := NewSynthetic("", 0)
	req := LipSyncRequest{AudioURL: "https://cdn/a.mp3", Avatar: "anna"}
	a, err := s.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := s.Generate(context.Background(), req)
	if a.URL != b.URL || !strings.HasPrefix(a.URL, "https://cdn.example.com/synthetic/") {
		t.Fatalf("urls = %q, %q", a.URL, b.URL)
	}
}

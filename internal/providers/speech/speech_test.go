package speech

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

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIOptions{APIKey: "  "}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestOpenAISynthesizeRequestShape(t *testing.T) {
	var captured openAISpeechRequest
	var gotPath, gotAuth string
	client, err := NewOpenAIClient(OpenAIOptions{
		APIKey:  "sk-test",
		BaseURL: "https://api.example.com/v1/",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"audio/mpeg"}},
				Body:       io.NopCloser(strings.NewReader("ID3fake")),
			}, nil
		})},
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	audio, err := client.Synthesize(context.Background(), Request{Text: " hello ", Voice: "alloy"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotPath != "/v1/audio/speech" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if captured.Model != defaultOpenAIModel || captured.Input != "hello" || captured.Voice != "alloy" || captured.ResponseFormat != "mp3" {
		t.Fatalf("payload = %+v", captured)
	}
	if string(audio.Data) != "ID3fake" || audio.Extension != "mp3" || audio.ContentType != "audio/mpeg" {
		t.Fatalf("audio = %+v", audio)
	}
}

func TestOpenAISynthesizeErrorBody(t *testing.T) {
	client, _ := NewOpenAIClient(OpenAIOptions{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"voice not found","type":"invalid_request_error"}}`)),
			}, nil
		})},
	})
	_, err := client.Synthesize(context.Background(), Request{Text: "hi", Voice: "nobody"})
	if err == nil || !strings.Contains(err.Error(), "voice not found") {
		t.Fatalf("err = %v, want provider message", err)
	}
}

func TestOpenAISynthesizeValidatesInput(t *testing.T) {
	client, _ := NewOpenAIClient(OpenAIOptions{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			t.Fatal("no request expected")
			return nil, nil
		})},
	})
	if _, err := client.Synthesize(context.Background(), Request{Voice: "alloy"}); err == nil {
		t.Fatal("expected error for empty text")
	}
	if _, err := client.Synthesize(context.Background(), Request{Text: "hi"}); err == nil {
		t.Fatal("expected error for empty voice")
	}
}

func TestSyntheticProducesWAV(t *testing.T) {
	audio, err := NewSynthetic().Synthesize(context.Background(), Request{Text: "one two three four", Voice: "A"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasPrefix(string(audio.Data), "RIFF") || string(audio.Data[8:12]) != "WAVE" {
		t.Fatalf("not a wav header: %q", audio.Data[:12])
	}
	if len(audio.Data) != 44+4*syntheticSamplesPerWord {
		t.Fatalf("len = %d", len(audio.Data))
	}
	if audio.Extension != "wav" {
		t.Fatalf("extension = %q", audio.Extension)
	}
}

package jsoncfg

import (
	"encoding/json"
	"errors"
	"testing"

	"newscast/internal/domain"
)

func TestAudioInputNormalizeFoldsText(t *testing.T) {
	in := &AudioInput{Text: "  hello  ", Voice: " A "}
	in.Normalize()

	if len(in.Chunks) != 1 || in.Chunks[0] != "hello" {
		t.Fatalf("Chunks = %#v, want [hello]", in.Chunks)
	}
	if in.Voice != "A" {
		t.Fatalf("Voice = %q, want %q", in.Voice, "A")
	}
	if in.Model != DefaultSpeechModel {
		t.Fatalf("Model = %q, want %q", in.Model, DefaultSpeechModel)
	}
}

func TestAudioInputNormalizeDropsBlankChunks(t *testing.T) {
	in := &AudioInput{Chunks: []string{"one", "  ", "two"}, Voice: "A"}
	in.Normalize()
	if len(in.Chunks) != 2 {
		t.Fatalf("Chunks = %#v, want 2 entries", in.Chunks)
	}
}

func TestAudioInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      AudioInput
		wantErr bool
	}{
		{name: "ok", in: AudioInput{Chunks: []string{"hi"}, Voice: "alloy"}},
		{name: "ok language", in: AudioInput{Chunks: []string{"hi"}, Voice: "alloy", Language: "id-ID"}},
		{name: "missing text", in: AudioInput{Voice: "alloy"}, wantErr: true},
		{name: "missing voice", in: AudioInput{Chunks: []string{"hi"}}, wantErr: true},
		{name: "bad language", in: AudioInput{Chunks: []string{"hi"}, Voice: "alloy", Language: "not a tag!"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestVideoInputValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      VideoInput
		wantErr bool
	}{
		{name: "ok avatar", in: VideoInput{AudioURL: "https://x/a.mp3", Avatar: "anna"}},
		{name: "ok video", in: VideoInput{AudioURL: "https://x/a.mp3", VideoURL: "https://x/v.mp4"}},
		{name: "missing audio", in: VideoInput{Avatar: "anna"}, wantErr: true},
		{name: "audio not url", in: VideoInput{AudioURL: "file:///etc/passwd", Avatar: "anna"}, wantErr: true},
		{name: "missing face", in: VideoInput{AudioURL: "https://x/a.mp3"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalizeInputAudio(t *testing.T) {
	raw, err := NormalizeInput(domain.JobKindAudio, json.RawMessage(`{"text":"hello","voice":"A"}`))
	if err != nil {
		t.Fatalf("NormalizeInput returned error: %v", err)
	}
	var in AudioInput
	if err := json.Unmarshal(raw, &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(in.Chunks) != 1 || in.Chunks[0] != "hello" || in.Text != "" {
		t.Fatalf("canonical input = %s", raw)
	}
}

func TestNormalizeInputRejects(t *testing.T) {
	cases := []struct {
		name string
		kind domain.JobKind
		raw  string
	}{
		{name: "empty", kind: domain.JobKindAudio, raw: ""},
		{name: "unknown field", kind: domain.JobKindAudio, raw: `{"text":"a","voice":"A","speed":2}`},
		{name: "invalid video", kind: domain.JobKindVideo, raw: `{"avatar":"anna"}`},
		{name: "unknown kind", kind: domain.JobKind("image"), raw: `{}`},
		{name: "blank chunks hide text", kind: domain.JobKindAudio, raw: `{"text":"hi","chunks":["  "],"voice":"A"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeInput(tc.kind, json.RawMessage(tc.raw))
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

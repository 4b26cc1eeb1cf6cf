package jsoncfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"newscast/internal/domain"
)

const (
	// DefaultSpeechModel is used when the audio input omits the model.
	DefaultSpeechModel = "tts-1"
	// DefaultLipSyncModel is used when the video input omits the model.
	DefaultLipSyncModel = "fal-ai/sync-lipsync"
	// MaxAudioChunks caps the number of chunks synthesized for one job.
	MaxAudioChunks = 64
	// MaxChunkLength is the longest chunk the speech endpoint accepts.
	MaxChunkLength = 4096
)

// AudioInput describes a text-to-speech job. Either Text or Chunks is set;
// Normalize folds Text into a single chunk.
type AudioInput struct {
	Text     string   `json:"text,omitempty"`
	Chunks   []string `json:"chunks,omitempty"`
	Voice    string   `json:"voice"`
	Model    string   `json:"model,omitempty"`
	Language string   `json:"language,omitempty"`
}

// ChunkResult points at the audio generated for one input chunk.
type ChunkResult struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// AudioResult is stored on completed audio jobs. URL is the first chunk.
type AudioResult struct {
	URL    string        `json:"url"`
	Chunks []ChunkResult `json:"chunks,omitempty"`
}

// VideoInput describes a lip-sync job pairing narration audio with an avatar
// clip.
type VideoInput struct {
	AudioURL string `json:"audio_url"`
	VideoURL string `json:"video_url,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Model    string `json:"model,omitempty"`
}

// VideoResult is stored on completed video jobs.
type VideoResult struct {
	URL string `json:"url"`
}

// Normalize trims fields and applies defaults.
func (in *AudioInput) Normalize() {
	if in == nil {
		return
	}
	in.Voice = strings.TrimSpace(in.Voice)
	in.Model = strings.TrimSpace(in.Model)
	if in.Model == "" {
		in.Model = DefaultSpeechModel
	}
	in.Language = strings.TrimSpace(in.Language)
	chunks := make([]string, 0, len(in.Chunks)+1)
	if text := strings.TrimSpace(in.Text); text != "" && len(in.Chunks) == 0 {
		chunks = append(chunks, text)
	}
	for _, c := range in.Chunks {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	in.Chunks = chunks
}

// Validate ensures a normalized audio input satisfies the contract before
// persistence. Text has been folded into Chunks by Normalize, so only the
// chunks count.
func (in AudioInput) Validate() error {
	if len(in.Chunks) == 0 {
		return fmt.Errorf("text or chunks is required")
	}
	if in.Voice == "" {
		return fmt.Errorf("voice is required")
	}
	if len(in.Chunks) > MaxAudioChunks {
		return fmt.Errorf("at most %d chunks are allowed", MaxAudioChunks)
	}
	for i, c := range in.Chunks {
		if len(c) > MaxChunkLength {
			return fmt.Errorf("chunks[%d] exceeds %d characters", i, MaxChunkLength)
		}
	}
	if in.Language != "" {
		if _, err := language.Parse(in.Language); err != nil {
			return fmt.Errorf("language %q is not a valid BCP 47 tag", in.Language)
		}
	}
	return nil
}

// Normalize trims fields and applies defaults.
func (in *VideoInput) Normalize() {
	if in == nil {
		return
	}
	in.AudioURL = strings.TrimSpace(in.AudioURL)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.Avatar = strings.TrimSpace(in.Avatar)
	in.Model = strings.TrimSpace(in.Model)
	if in.Model == "" {
		in.Model = DefaultLipSyncModel
	}
}

// Validate ensures the video input satisfies the contract before persistence.
func (in VideoInput) Validate() error {
	if in.AudioURL == "" {
		return fmt.Errorf("audio_url is required")
	}
	if !isHTTPURL(in.AudioURL) {
		return fmt.Errorf("audio_url must be an http(s) url")
	}
	if in.VideoURL == "" && in.Avatar == "" {
		return fmt.Errorf("video_url or avatar is required")
	}
	if in.VideoURL != "" && !isHTTPURL(in.VideoURL) {
		return fmt.Errorf("video_url must be an http(s) url")
	}
	return nil
}

// NormalizeInput decodes, normalizes and validates a kind-specific input and
// returns the canonical bytes to persist. Failures wrap domain.ErrInvalidInput.
func NormalizeInput(kind domain.JobKind, raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: input is required", domain.ErrInvalidInput)
	}
	switch kind {
	case domain.JobKindAudio:
		var in AudioInput
		if err := decodeStrict(raw, &in); err != nil {
			return nil, err
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		in.Text = ""
		return MustMarshal(in), nil
	case domain.JobKindVideo:
		var in VideoInput
		if err := decodeStrict(raw, &in); err != nil {
			return nil, err
		}
		in.Normalize()
		if err := in.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return MustMarshal(in), nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidInput, kind)
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode input: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}

package types

import "strings"

// Kind discriminates what an artifact carries.
type Kind string

const (
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

// Artifact is the payload handed to the pipeline. It is immutable once
// submitted; the pipeline slices it but never copies or mutates it.
type Artifact struct {
	Kind Kind
	// Name is a caller-supplied label (original filename), used only
	// for logs and exports.
	Name string
	// Data holds the raw bytes for audio artifacts.
	Data []byte
	// Text holds the character payload for text artifacts.
	Text string
	// DurationSeconds is the media duration when the caller's format
	// collaborator could determine it. Zero means unknown.
	DurationSeconds float64
}

// Size returns the artifact's measure in its native unit: bytes for
// audio, characters (runes) for text.
func (a Artifact) Size() int {
	if a.Kind == KindText {
		return len([]rune(a.Text))
	}
	return len(a.Data)
}

// Empty reports whether the artifact carries no usable payload.
// Whitespace-only text counts as empty.
func (a Artifact) Empty() bool {
	return len(a.Data) == 0 && strings.TrimSpace(a.Text) == ""
}

// Op selects which remote operation a run performs.
type Op string

const (
	OpTranscribe Op = "transcribe"
	OpTemplate   Op = "template"
	OpCustom     Op = "custom"
)

// ProcessingSpec describes what the pipeline should do with an
// artifact. Fields beyond Op are operation-specific.
type ProcessingSpec struct {
	Op Op `json:"op"`

	// Transcription.
	Language string `json:"language,omitempty"`

	// Templated text processing.
	TemplateID string `json:"template_id,omitempty"`

	// Custom-prompt text processing.
	UserPrompt   string `json:"user_prompt,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

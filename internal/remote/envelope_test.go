package remote

import (
	"errors"
	"testing"
)

func TestExtractTextShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"flat text", `{"text":"plain transcript"}`, "plain transcript"},
		{"nested data", `{"data":{"text":"nested transcript"}}`, "nested transcript"},
		{"chat message", `{"choices":[{"message":{"content":"chat answer"}}]}`, "chat answer"},
		{"completion text", `{"choices":[{"text":"completion answer"}]}`, "completion answer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractText([]byte(tc.body))
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractTextPrefersTopLevelText(t *testing.T) {
	body := `{"text":"top","data":{"text":"nested"}}`
	got, err := ExtractText([]byte(body))
	if err != nil || got != "top" {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestExtractTextErrorFieldIsTerminal(t *testing.T) {
	_, err := ExtractText([]byte(`{"error":"quota exceeded"}`))
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("error field must be terminal, got %v", err)
	}
}

func TestExtractTextUnrecognizedShape(t *testing.T) {
	for _, body := range []string{`{}`, `{"choices":[]}`, `not json at all`, ``} {
		if _, err := ExtractText([]byte(body)); err == nil {
			t.Fatalf("body %q should not parse", body)
		} else if errors.Is(err, ErrTerminal) {
			t.Fatalf("shape problems are transient, not terminal: %v", err)
		}
	}
}

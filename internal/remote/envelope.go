package remote

import (
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the minimal structural contract for provider responses:
// a success signal plus either a result-text field or an error field.
// The fallback chain covers the plain {"text"}, nested {"data":{"text"}}
// and OpenAI-style {"choices"} shapes.
type envelope struct {
	Text  string `json:"text"`
	Error string `json:"error"`
	Data  struct {
		Text string `json:"text"`
	} `json:"data"`
	Choices []struct {
		Text    string `json:"text"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExtractText pulls the result text out of a response body. A body
// carrying an explicit error field is a well-formed rejection and comes
// back wrapped in ErrTerminal; a body matching no known shape is a
// plain parse error, which the executor treats as transient.
func ExtractText(body []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("unparseable response body: %w", err)
	}

	if env.Error != "" {
		return "", fmt.Errorf("%w: remote rejected request: %s", ErrTerminal, env.Error)
	}
	if env.Text != "" {
		return strings.TrimSpace(env.Text), nil
	}
	if env.Data.Text != "" {
		return strings.TrimSpace(env.Data.Text), nil
	}
	if len(env.Choices) > 0 {
		c := env.Choices[0]
		if c.Message.Content != "" {
			return strings.TrimSpace(c.Message.Content), nil
		}
		if c.Text != "" {
			return strings.TrimSpace(c.Text), nil
		}
	}
	return "", fmt.Errorf("unrecognized response shape")
}

package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
	"time"
)

// NewTranscriptionRequest builds a multipart audio upload for an
// OpenAI-compatible /audio/transcriptions endpoint.
func NewTranscriptionRequest(baseURL, apiKey, model, language, filename string, audio []byte, timeout time.Duration) (Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return Request{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Request{}, fmt.Errorf("write audio payload: %w", err)
	}
	_ = w.WriteField("model", model)
	_ = w.WriteField("language", language)
	_ = w.WriteField("response_format", "json")
	if err := w.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart writer: %w", err)
	}

	return Request{
		Method: "POST",
		URL:    strings.TrimRight(baseURL, "/") + "/audio/transcriptions",
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
			"Content-Type":  w.FormDataContentType(),
		},
		Body:    buf.Bytes(),
		Timeout: timeout,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewChatRequest builds a JSON chat-completion call for an
// OpenAI-compatible /chat/completions endpoint. The instruction prompt
// is prepended to the text inside the user message.
func NewChatRequest(baseURL, apiKey, model, systemPrompt, userPrompt, text string, maxTokens int, temperature float64, timeout time.Duration) (Request, error) {
	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{
		Role:    "user",
		Content: userPrompt + "\n\nOriginal text:\n" + text,
	})

	body, err := json.Marshal(map[string]any{
		"model":       model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      false,
	})
	if err != nil {
		return Request{}, fmt.Errorf("marshal chat request: %w", err)
	}

	return Request{
		Method: "POST",
		URL:    strings.TrimRight(baseURL, "/") + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
			"Content-Type":  "application/json",
		},
		Body:    body,
		Timeout: timeout,
	}, nil
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

// Anthropic implements TextGenerator against the Anthropic messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{apiKey: apiKey, model: model, baseURL: anthropicURL, client: &http.Client{}}
}

func (a *Anthropic) Generate(ctx context.Context, prompt, system string) (string, error) {
	payload := map[string]any{
		"model":      a.model,
		"max_tokens": maxTokens,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}
	if system != "" {
		payload["system"] = system
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var ar struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &ar); err != nil {
		return "", fmt.Errorf("anthropic decode: %w", err)
	}
	if ar.Error != nil {
		return "", fmt.Errorf("anthropic: %s", ar.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: anthropic: unexpected status %s", ErrTransport, resp.Status)
	}
	if len(ar.Content) == 0 {
		log.Warn().Str("model", a.model).Msg("anthropic returned no content")
		return "", nil
	}

	// Content arrives as ordered blocks; join them in arrival order.
	var sb strings.Builder
	for _, c := range ar.Content {
		sb.WriteString(c.Text)
	}
	return sb.String(), nil
}

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

const googleURL = "https://generativelanguage.googleapis.com"

// Google implements TextGenerator against the Gemini generateContent API.
type Google struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGoogle(apiKey, model string) *Google {
	return &Google{apiKey: apiKey, model: model, baseURL: googleURL, client: &http.Client{}}
}

func (g *Google) Generate(ctx context.Context, prompt, system string) (string, error) {
	return googleGenerate(ctx, g.client, g.baseURL, g.apiKey, g.model, []googlePart{{"text": prompt}}, system)
}

type googlePart map[string]any

// googleGenerate is the shared generateContent call. The files provider
// reuses it with file-reference parts prepended to the prompt text.
func googleGenerate(ctx context.Context, client *http.Client, baseURL, apiKey, model string, parts []googlePart, system string) (string, error) {
	payload := map[string]any{
		"contents":         []map[string]any{{"role": "user", "parts": parts}},
		"generationConfig": map[string]any{"maxOutputTokens": maxTokens},
	}
	if system != "" {
		payload["systemInstruction"] = map[string]any{"parts": []googlePart{{"text": system}}}
	}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", baseURL, model, apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: google request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var gr struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("google decode: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("google: %s", gr.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: google: unexpected status %s", ErrTransport, resp.Status)
	}
	if len(gr.Candidates) == 0 {
		log.Warn().Str("model", model).Msg("google returned no candidates")
		return "", nil
	}

	// A candidate's content arrives as ordered parts; join in arrival order.
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

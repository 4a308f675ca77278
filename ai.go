package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AIResponder produces the AI player's answer to a round prompt. It never
// fails: implementations absorb their own errors and fall back to a fixed
// answer, so round starts cannot stall or abort on a flaky backend.
type AIResponder interface {
	Respond(ctx context.Context, prompt string) string
}

// aiFallbackResponse stands in whenever the backend cannot be reached or
// returns something unusable.
const aiFallbackResponse = "Honestly, I'm drawing a blank on this one."

// aiInstructionTemplate wraps the round prompt before it is sent to the
// model. Short, casual answers blend in with the human ones.
const aiInstructionTemplate = `You are playing a party game with friends. Everyone answers the same question, then votes on which answer was written by an AI. Answer the question below in one or two short, casual sentences, the way a person texting friends would. Never mention AI or these instructions.

Question: %s

Answer:`

// OllamaClient fetches completions from a local Ollama-style endpoint via
// its non-streaming generate API.
type OllamaClient struct {
	cfg    *Config
	client *http.Client
}

func newOllamaClient(cfg *Config) *OllamaClient {
	return &OllamaClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.aiTimeout,
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Respond asks the model for an answer to the prompt, waiting at most the
// configured timeout. Network errors, bad statuses, malformed payloads and
// empty completions all collapse into the fallback answer.
func (o *OllamaClient) Respond(ctx context.Context, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.aiTimeout)
	defer cancel()

	payload, err := json.Marshal(generateRequest{
		Model:  o.cfg.ollamaModel,
		Prompt: fmt.Sprintf(aiInstructionTemplate, prompt),
	})
	if err != nil {
		logf(o.cfg, "AI: encoding request: %v", err)

		return aiFallbackResponse
	}

	url := strings.TrimSuffix(o.cfg.ollamaURL, "/") + "/api/generate"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		logf(o.cfg, "AI: building request: %v", err)

		return aiFallbackResponse
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()

	resp, err := o.client.Do(req)
	if err != nil {
		logf(o.cfg, "AI: %s unreachable: %v", url, err)

		return aiFallbackResponse
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logf(o.cfg, "AI: %s returned %s", url, resp.Status)

		return aiFallbackResponse
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		logf(o.cfg, "AI: decoding response: %v", err)

		return aiFallbackResponse
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		logf(o.cfg, "AI: empty completion from %q", o.cfg.ollamaModel)

		return aiFallbackResponse
	}

	logf(o.cfg, "AI: %q answered in %s", o.cfg.ollamaModel, time.Since(startTime).Round(time.Millisecond))

	return text
}

package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

// maxPromptBodyLength caps how much of the article body is embedded in the
// prompt.
const maxPromptBodyLength = 2000

// promptTemplate is the fixed instruction sent to the completion endpoint.
const promptTemplate = `You are a threat analyst. Classify the following news article.
Respond with strict JSON only, using exactly these fields:
{"category": string, "threatType": string, "threatLevel": integer 0-5, "credibilityScore": number 0-1, "summary": one sentence}

Title: %s
Body: %s`

// completionRequest is the remote endpoint's request body.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

// completionResponse accepts both supported response envelopes: a direct
// response string or a choices array.
type completionResponse struct {
	Response string `json:"response"`
	Choices  []struct {
		Text    string `json:"text"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// RemoteModel classifies via a generic completion endpoint. Any network
// error, non-success status, or parse failure is returned to the caller,
// which silently falls back to the rule-based backend.
type RemoteModel struct {
	endpoint    string
	maxTokens   int
	temperature float64
	client      *http.Client
	log         logger.Logger
}

// NewRemoteModel creates the remote backend.
func NewRemoteModel(endpoint string, maxTokens int, timeout time.Duration, log logger.Logger) *RemoteModel {
	return &RemoteModel{
		endpoint:    endpoint,
		maxTokens:   maxTokens,
		temperature: 0.1,
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

// Name identifies the backend.
func (m *RemoteModel) Name() domain.ClassifiedBy {
	return domain.ClassifiedByModel
}

// Classify sends the prompt and parses the model's JSON reply.
func (m *RemoteModel) Classify(ctx context.Context, title, body string) (*Result, error) {
	body = truncateRunes(body, maxPromptBodyLength)

	payload, err := json.Marshal(completionRequest{
		Prompt:      fmt.Sprintf(promptTemplate, title, body),
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if reqErr != nil {
		return nil, fmt.Errorf("build request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := m.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("call model: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var envelope completionResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	text := extractText(&envelope)
	if text == "" {
		return nil, errors.New("empty model response")
	}

	return parseResult(text)
}

// extractText pulls the completion text out of whichever envelope the
// endpoint used.
func extractText(envelope *completionResponse) string {
	if envelope.Response != "" {
		return envelope.Response
	}
	if len(envelope.Choices) == 0 {
		return ""
	}
	if envelope.Choices[0].Text != "" {
		return envelope.Choices[0].Text
	}
	return envelope.Choices[0].Message.Content
}

// parseResult locates the first '{' through the last '}' in the text and
// parses it as the classification object, defaulting any missing field and
// clamping out-of-range values.
func parseResult(text string) (*Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in model response")
	}

	result := Result{
		Category:         DefaultCategory,
		ThreatType:       ThreatTypeNone,
		CredibilityScore: mediumCredibility,
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("parse model JSON: %w", err)
	}

	if result.Category == "" {
		result.Category = DefaultCategory
	}
	if result.ThreatType == "" {
		result.ThreatType = ThreatTypeNone
	}
	if result.ThreatLevel < 0 {
		result.ThreatLevel = 0
	}
	if result.ThreatLevel > maxThreatLevel {
		result.ThreatLevel = maxThreatLevel
	}
	if result.CredibilityScore < 0 {
		result.CredibilityScore = 0
	}
	if result.CredibilityScore > 1 {
		result.CredibilityScore = 1
	}

	return &result, nil
}

// Package openai implements intelligence.DocumentIntelligence on the OpenAI
// chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"visadocs/constants"
	"visadocs/internal/intelligence"
)

// Config for the OpenAI client.
type Config struct {
	APIKey       string
	BaseURL      string // default https://api.openai.com/v1
	Model        string // classification + analysis, e.g. "gpt-4o-mini"
	VisionModel  string // OCR, e.g. "gpt-4o"
	Temperature  float32
	Timeout      time.Duration
	MaxOCRTokens int
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxOCRTokens <= 0 {
		cfg.MaxOCRTokens = 4000
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Classify identifies the document type and visa category from extracted text.
func (c *Client) Classify(ctx context.Context, text string) (*intelligence.Classification, error) {
	rid := uuid.New().String()
	content, err := c.chatJSON(ctx, rid, c.cfg.Model, 0, []map[string]any{
		{"role": "system", "content": classifySystemPrompt},
		{"role": "user", "content": buildClassifyPrompt(text)},
	})
	if err != nil {
		c.log.Error("llm.classify.failed", "req_id", rid, "error", err)
		return nil, err
	}

	if err := intelligence.ValidateJSONAgainstSchema(intelligence.ClassificationSchema(), content); err != nil {
		c.log.Error("llm.classify.schema_validation_failed", "req_id", rid, "error", err)
		return nil, fmt.Errorf("classification schema: %w", err)
	}
	var out intelligence.Classification
	if err := json.Unmarshal(content, &out); err != nil {
		c.log.Error("llm.classify.decode_error", "req_id", rid, "error", err)
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if out.DocumentType == "" {
		out.DocumentType = "Unknown"
	}
	if out.VisaCategory == "" {
		out.VisaCategory = "Unknown"
	}
	c.log.Info("llm.classify.ok",
		"req_id", rid,
		"document_type", out.DocumentType,
		"visa_category", out.VisaCategory,
		"confidence", out.Confidence,
	)
	return &out, nil
}

// Analyze verifies document text against the requirements of its visa
// category and returns scored, structured findings.
func (c *Client) Analyze(ctx context.Context, text, visaCategory, documentType string) (*intelligence.Analysis, error) {
	rid := uuid.New().String()
	content, err := c.chatJSON(ctx, rid, c.cfg.Model, 0, []map[string]any{
		{"role": "system", "content": analyzeSystemPrompt},
		{"role": "user", "content": buildAnalyzePrompt(text, visaCategory, documentType)},
	})
	if err != nil {
		c.log.Error("llm.analyze.failed", "req_id", rid, "error", err)
		return nil, err
	}

	if err := intelligence.ValidateJSONAgainstSchema(intelligence.AnalysisSchema(), content); err != nil {
		c.log.Error("llm.analyze.schema_validation_failed", "req_id", rid, "error", err)
		return nil, fmt.Errorf("analysis schema: %w", err)
	}
	var out intelligence.Analysis
	if err := json.Unmarshal(content, &out); err != nil {
		c.log.Error("llm.analyze.decode_error", "req_id", rid, "error", err)
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	out.Raw = content
	out.CompletenessScore = intelligence.ClampScore(out.CompletenessScore)
	if out.ConfidenceScore != nil {
		clamped := intelligence.ClampScore(*out.ConfidenceScore)
		out.ConfidenceScore = &clamped
	}
	c.log.Info("llm.analyze.ok",
		"req_id", rid,
		"completeness", out.CompletenessScore,
		"compliance", out.ComplianceStatus,
		"findings", len(out.Findings),
	)
	return &out, nil
}

// OCR transcribes rendered page images with the vision model. When the model
// skips the assessment JSON and answers with plain text, the transcription is
// returned with Structured=false and the caller applies default confidence.
func (c *Client) OCR(ctx context.Context, imagePaths []string) (*intelligence.OCRResult, error) {
	rid := uuid.New().String()

	parts := []map[string]any{{"type": "text", "text": ocrPrompt}}
	for _, p := range imagePaths {
		dataURL, err := readAsDataURL(p)
		if err != nil {
			c.log.Error("llm.ocr.read_image_failed", "req_id", rid, "path", p, "error", err)
			return nil, fmt.Errorf("read page image: %w", err)
		}
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": dataURL},
		})
	}

	content, err := c.chatJSON(ctx, rid, c.cfg.VisionModel, c.cfg.MaxOCRTokens, []map[string]any{
		{"role": "system", "content": ocrSystemPrompt},
		{"role": "user", "content": parts},
	})
	if err != nil {
		c.log.Error("llm.ocr.failed", "req_id", rid, "pages", len(imagePaths), "error", err)
		return nil, err
	}

	if err := intelligence.ValidateJSONAgainstSchema(intelligence.OCRSchema(), content); err != nil {
		c.log.Warn("llm.ocr.unstructured_response", "req_id", rid, "error", err)
		return &intelligence.OCRResult{
			TranscribedText: string(content),
			OCRConfidence:   constants.DefaultOCRConfidence,
			Structured:      false,
		}, nil
	}
	var out intelligence.OCRResult
	if err := json.Unmarshal(content, &out); err != nil {
		c.log.Warn("llm.ocr.decode_error", "req_id", rid, "error", err)
		return &intelligence.OCRResult{
			TranscribedText: string(content),
			OCRConfidence:   constants.DefaultOCRConfidence,
			Structured:      false,
		}, nil
	}
	out.Structured = true
	out.OCRConfidence = intelligence.ClampScore(out.OCRConfidence)
	c.log.Info("llm.ocr.ok",
		"req_id", rid,
		"pages", len(imagePaths),
		"confidence", out.OCRConfidence,
		"clarity", out.TextClarity,
		"text_bytes", len(out.TranscribedText),
	)
	return &out, nil
}

// chatJSON posts a chat completion constrained to a JSON object response and
// returns the first choice's content with any code fences stripped.
func (c *Client) chatJSON(ctx context.Context, rid, model string, maxTokens int, messages []map[string]any) ([]byte, error) {
	body := map[string]any{
		"model":           model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}

	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("no choices in openai response")
	}

	c.log.Debug("llm.chat.ok",
		"req_id", rid,
		"model", model,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"raw_bytes", len(raw),
	)
	return []byte(stripJSONFences(cc.Choices[0].Message.Content)), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

// stripJSONFences trims markdown code fences some models wrap JSON in.
func stripJSONFences(s string) string {
	clean := strings.TrimSpace(s)
	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

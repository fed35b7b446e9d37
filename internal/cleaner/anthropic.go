package cleaner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/service"
)

const defaultBatchSize = 5

// anthropicCleaner implements the Cleaner interface against the Anthropic API.
type anthropicCleaner struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	batchSize   int
}

func newAnthropicCleaner(cfg Config) (Cleaner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", common.ErrMissingConfig)
	}

	cleanerModel := cfg.Model
	if cleanerModel == "" {
		cleanerModel = "claude-3-5-haiku-20241022"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &anthropicCleaner{
		apiKey:      cfg.APIKey,
		model:       cleanerModel,
		temperature: temperature,
		maxTokens:   maxTokens,
		batchSize:   batchSize,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

const cleanerSystemPrompt = "You are a data cleaning assistant for data center " +
	"operational reports. For each record, fix obvious formatting problems in the " +
	"field values (stray whitespace, typos in units, swapped separators) without " +
	"inventing data. Respond only with the JSON array requested."

// Clean cleans records in batches. One failed batch does not abort the
// rest; failed records are returned unmodified with a zero confidence.
func (c *anthropicCleaner) Clean(ctx context.Context, records []model.RawRecord) ([]CleanedRecord, error) {
	cleaned := make([]CleanedRecord, 0, len(records))

	for start := 0; start < len(records); start += c.batchSize {
		end := start + c.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		var result []CleanedRecord
		err := common.WithRetry(ctx, func() error {
			var cleanErr error
			result, cleanErr = c.cleanBatch(ctx, batch)
			return cleanErr
		}, service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second})
		if err != nil {
			for _, record := range batch {
				cleaned = append(cleaned, CleanedRecord{
					Record:        record,
					CleaningNotes: fmt.Sprintf("cleaning failed: %v", err),
				})
			}
			continue
		}
		cleaned = append(cleaned, result...)
	}

	return cleaned, nil
}

type cleanerRecordPayload struct {
	Vendor      string `json:"vendor"`
	Month       string `json:"month"`
	Region      string `json:"region"`
	GPUHours    string `json:"gpu_hours"`
	Energy      string `json:"energy"`
	Tokens      string `json:"tokens"`
	APICalls    string `json:"api_calls"`
	PUE         string `json:"pue"`
	Utilization string `json:"utilization"`
}

type cleanerResponsePayload struct {
	cleanerRecordPayload
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes"`
}

func (c *anthropicCleaner) cleanBatch(ctx context.Context, batch []model.RawRecord) ([]CleanedRecord, error) {
	payload := make([]cleanerRecordPayload, len(batch))
	for i, record := range batch {
		payload[i] = cleanerRecordPayload{
			Vendor:      record.Vendor,
			Month:       record.Month,
			Region:      record.Region,
			GPUHours:    record.GPUHoursRaw,
			Energy:      record.EnergyRaw,
			Tokens:      record.TokensRaw,
			APICalls:    record.APICallsRaw,
			PUE:         record.PUERaw,
			Utilization: record.UtilizationRaw,
		}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}

	prompt := fmt.Sprintf(
		"Clean these %d operational records. Return a JSON array of the same length, "+
			"in the same order, where each element has the same fields plus a "+
			"\"confidence\" number from 0 to 100 and a \"notes\" string describing "+
			"what you changed:\n\n%s", len(batch), payloadJSON)

	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      cleanerSystemPrompt,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, common.ErrRateLimit
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Content) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	return parseCleanedBatch(response.Content[0].Text, batch)
}

func parseCleanedBatch(content string, batch []model.RawRecord) ([]CleanedRecord, error) {
	content = cleanMarkdownWrapper(content)

	var parsed []cleanerResponsePayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if len(parsed) != len(batch) {
		return nil, fmt.Errorf("response has %d records, expected %d", len(parsed), len(batch))
	}

	cleaned := make([]CleanedRecord, len(batch))
	for i, p := range parsed {
		record := batch[i]
		record.Region = p.Region
		record.GPUHoursRaw = p.GPUHours
		record.EnergyRaw = p.Energy
		record.TokensRaw = p.Tokens
		record.APICallsRaw = p.APICalls
		record.PUERaw = p.PUE
		record.UtilizationRaw = p.Utilization

		confidence := p.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}

		cleaned[i] = CleanedRecord{
			Record:          record,
			CleaningNotes:   p.Notes,
			ConfidenceScore: confidence,
		}
	}
	return cleaned, nil
}

// cleanMarkdownWrapper strips code fences the model sometimes wraps around
// its JSON output.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Vendor identifies an AI provider.
type Vendor string

const (
	VendorGemini Vendor = "gemini"
	VendorOpenAI Vendor = "openai"
	VendorGroq   Vendor = "groq"
	VendorClaude Vendor = "claude"
)

const (
	geminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta/models"
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	groqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
	claudeEndpoint = "https://api.anthropic.com/v1/messages"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the normalized result of any vendor call.
type Completion struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokensUsed"`
	Model      string `json:"model"`
	Vendor     Vendor `json:"vendor"`
}

// Client issues chat-completion requests against vendor HTTP APIs and
// normalizes their response shapes. Every call carries the HTTP timeout so a
// hung vendor cannot stall a generation cycle.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a vendor client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends system+user messages to the vendor and returns the
// normalized completion. Failures are classified as *CallError.
func (c *Client) Complete(ctx context.Context, vendor Vendor, model, apiKey, systemPrompt, userPrompt string, maxTokens int) (*Completion, error) {
	switch vendor {
	case VendorGemini:
		return c.completeGemini(ctx, model, apiKey, systemPrompt, userPrompt, maxTokens)
	case VendorOpenAI:
		return c.completeOpenAICompatible(ctx, VendorOpenAI, openAIEndpoint, model, apiKey, systemPrompt, userPrompt, maxTokens)
	case VendorGroq:
		return c.completeOpenAICompatible(ctx, VendorGroq, groqEndpoint, model, apiKey, systemPrompt, userPrompt, maxTokens)
	case VendorClaude:
		return c.completeClaude(ctx, model, apiKey, systemPrompt, userPrompt, maxTokens)
	default:
		return nil, &CallError{Kind: KindVendor, Vendor: vendor, Model: model, Message: "unsupported vendor"}
	}
}

// geminiRequest is the generateContent request body.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) completeGemini(ctx context.Context, model, apiKey, systemPrompt, userPrompt string, maxTokens int) (*Completion, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: maxTokens},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, model, apiKey)
	status, respBody, err := c.post(ctx, url, nil, req)
	if err != nil {
		return nil, &CallError{Kind: KindNetwork, Vendor: VendorGemini, Model: model, Message: err.Error()}
	}
	if status == http.StatusTooManyRequests {
		return nil, &CallError{Kind: KindRateLimited, Vendor: VendorGemini, Model: model, Status: status, Message: "quota exceeded"}
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &CallError{Kind: KindVendor, Vendor: VendorGemini, Model: model, Status: status, Message: err.Error()}
	}
	if resp.Error != nil {
		kind := KindVendor
		if resp.Error.Code == http.StatusTooManyRequests || resp.Error.Status == "RESOURCE_EXHAUSTED" {
			kind = KindRateLimited
		}
		return nil, &CallError{Kind: kind, Vendor: VendorGemini, Model: model, Status: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &CallError{Kind: KindVendor, Vendor: VendorGemini, Model: model, Status: status, Message: "empty response"}
	}

	return &Completion{
		Content:    resp.Candidates[0].Content.Parts[0].Text,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
		Model:      model,
		Vendor:     VendorGemini,
	}, nil
}

type openAIRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) completeOpenAICompatible(ctx context.Context, vendor Vendor, endpoint, model, apiKey, systemPrompt, userPrompt string, maxTokens int) (*Completion, error) {
	req := openAIRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: maxTokens,
	}

	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	status, respBody, err := c.post(ctx, endpoint, headers, req)
	if err != nil {
		return nil, &CallError{Kind: KindNetwork, Vendor: vendor, Model: model, Message: err.Error()}
	}
	if status == http.StatusTooManyRequests {
		return nil, &CallError{Kind: KindRateLimited, Vendor: vendor, Model: model, Status: status, Message: "rate limited"}
	}

	var resp openAIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &CallError{Kind: KindVendor, Vendor: vendor, Model: model, Status: status, Message: err.Error()}
	}
	if resp.Error != nil {
		return nil, &CallError{Kind: KindVendor, Vendor: vendor, Model: model, Status: status, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, &CallError{Kind: KindVendor, Vendor: vendor, Model: model, Status: status, Message: "empty response"}
	}

	return &Completion{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
		Model:      model,
		Vendor:     vendor,
	}, nil
}

type claudeRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) completeClaude(ctx context.Context, model, apiKey, systemPrompt, userPrompt string, maxTokens int) (*Completion, error) {
	req := claudeRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
	}

	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": "2023-06-01",
	}
	status, respBody, err := c.post(ctx, claudeEndpoint, headers, req)
	if err != nil {
		return nil, &CallError{Kind: KindNetwork, Vendor: VendorClaude, Model: model, Message: err.Error()}
	}
	if status == http.StatusTooManyRequests {
		return nil, &CallError{Kind: KindRateLimited, Vendor: VendorClaude, Model: model, Status: status, Message: "rate limited"}
	}

	var resp claudeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &CallError{Kind: KindVendor, Vendor: VendorClaude, Model: model, Status: status, Message: err.Error()}
	}
	if resp.Error != nil {
		kind := KindVendor
		if resp.Error.Type == "rate_limit_error" {
			kind = KindRateLimited
		}
		return nil, &CallError{Kind: kind, Vendor: VendorClaude, Model: model, Status: status, Message: resp.Error.Message}
	}
	if len(resp.Content) == 0 {
		return nil, &CallError{Kind: KindVendor, Vendor: VendorClaude, Model: model, Status: status, Message: "empty response"}
	}

	return &Completion{
		Content:    resp.Content[0].Text,
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Model:      model,
		Vendor:     VendorClaude,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, headers map[string]string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/upb/faq-rag/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// OpenAIAdapter implements the Provider interface for the OpenAI chat completions API
type OpenAIAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	adapter := &OpenAIAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}

	adapter.initModels()

	return adapter
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// ChatCompletion performs a chat completion request.
// Transport errors, 429 and 5xx responses are retried up to MaxRetries times.
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	info, err := a.GetModelInfo(req.Model)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "INVALID_MODEL", err.Error(), 400, false, err)
	}

	reqBody, err := json.Marshal(a.buildOpenAIRequest(req, info))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, a.config.RetryDelay*time.Duration(attempt)); err != nil {
				return nil, providers.NewProviderError(a.Name(), "CANCELLED", "Request cancelled", 0, false, err)
			}
		}

		resp, err := a.doChat(ctx, reqBody)
		if err == nil {
			return a.convertToUnifiedResponse(resp, req, time.Since(startTime)), nil
		}
		lastErr = err
		if !providers.IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// doChat performs one HTTP round trip
func (a *OpenAIAdapter) doChat(ctx context.Context, reqBody []byte) (*OpenAIChatResponse, error) {
	if a.config.Limiter != nil {
		if err := a.config.Limiter.Wait(ctx); err != nil {
			return nil, providers.NewProviderError(a.Name(), "CANCELLED", "Rate limiter wait failed", 0, false, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, ctx.Err() == nil, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, true, err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests && a.config.Limiter != nil {
		a.config.Limiter.RecordRateLimited(parseRetryAfter(httpResp.Header.Get("Retry-After")))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var openaiResp OpenAIChatResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	return &openaiResp, nil
}

// IsAvailable checks if the provider is currently available
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ValidateModel checks if a model is supported
func (a *OpenAIAdapter) ValidateModel(model string) error {
	if _, exists := a.models[model]; !exists {
		return fmt.Errorf("model %s is not supported by OpenAI provider", model)
	}
	return nil
}

// GetModelInfo returns information about a specific model
func (a *OpenAIAdapter) GetModelInfo(model string) (*providers.ModelInfo, error) {
	info, exists := a.models[model]
	if !exists {
		return nil, fmt.Errorf("model %s not found", model)
	}
	return info, nil
}

// ListModels returns all available models, sorted
func (a *OpenAIAdapter) ListModels() []string {
	models := make([]string, 0, len(a.models))
	for model := range a.models {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

func (a *OpenAIAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	if a.config.OrgID != "" {
		req.Header.Set("OpenAI-Organization", a.config.OrgID)
	}
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
}

// initModels initializes the model information map
func (a *OpenAIAdapter) initModels() {
	a.models = map[string]*providers.ModelInfo{
		"gpt-4o": {
			ID:            "gpt-4o",
			Name:          "GPT-4o",
			Provider:      providerName,
			Description:   "Optimized GPT-4 model",
			MaxTokens:     16384,
			ContextWindow: 128000,
			SupportsJSON:  true,
		},
		"gpt-4o-mini": {
			ID:            "gpt-4o-mini",
			Name:          "GPT-4o Mini",
			Provider:      providerName,
			Description:   "Smaller, faster GPT-4o model",
			MaxTokens:     16384,
			ContextWindow: 128000,
			SupportsJSON:  true,
		},
		"gpt-4-turbo": {
			ID:            "gpt-4-turbo",
			Name:          "GPT-4 Turbo",
			Provider:      providerName,
			Description:   "GPT-4 Turbo with vision",
			MaxTokens:     4096,
			ContextWindow: 128000,
			SupportsJSON:  true,
		},
		"gpt-3.5-turbo": {
			ID:            "gpt-3.5-turbo",
			Name:          "GPT-3.5 Turbo",
			Provider:      providerName,
			Description:   "Fast and efficient model",
			MaxTokens:     4096,
			ContextWindow: 16385,
			SupportsJSON:  true,
		},
		"o3-mini": {
			ID:            "o3-mini",
			Name:          "o3-mini",
			Provider:      providerName,
			Description:   "Small reasoning model",
			MaxTokens:     100000,
			ContextWindow: 200000,
			SupportsJSON:  true,
			Reasoning:     true,
		},
		"o1-mini": {
			ID:            "o1-mini",
			Name:          "o1-mini",
			Provider:      providerName,
			Description:   "Small reasoning model, previous generation",
			MaxTokens:     65536,
			ContextWindow: 128000,
			Reasoning:     true,
		},
	}

	for _, id := range a.config.ExtraModels {
		if _, exists := a.models[id]; !exists && id != "" {
			a.models[id] = &providers.ModelInfo{ID: id, Name: id, Provider: providerName}
		}
	}
}

// buildOpenAIRequest converts unified request to OpenAI format
func (a *OpenAIAdapter) buildOpenAIRequest(req *providers.ChatRequest, info *providers.ModelInfo) *OpenAIChatRequest {
	openaiReq := &OpenAIChatRequest{
		Model:    req.Model,
		Messages: make([]OpenAIMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		openaiReq.Messages[i] = OpenAIMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	if info.Reasoning {
		if req.MaxTokens > 0 {
			openaiReq.MaxCompletionTokens = &req.MaxTokens
		}
	} else {
		if req.MaxTokens > 0 {
			openaiReq.MaxTokens = &req.MaxTokens
		}
		openaiReq.Temperature = req.Temperature
	}
	if req.ResponseFormat != providers.ResponseFormatText {
		openaiReq.ResponseFormat = &OpenAIResponseFormat{Type: req.ResponseFormat}
	}

	return openaiReq
}

// convertToUnifiedResponse converts OpenAI response to unified format
func (a *OpenAIAdapter) convertToUnifiedResponse(openaiResp *OpenAIChatResponse, req *providers.ChatRequest, latency time.Duration) *providers.ChatResponse {
	resp := &providers.ChatResponse{
		ID:       openaiResp.ID,
		Model:    openaiResp.Model,
		Provider: a.Name(),
		Choices:  make([]providers.Choice, len(openaiResp.Choices)),
		Usage: providers.Usage{
			PromptTokens:     openaiResp.Usage.PromptTokens,
			CompletionTokens: openaiResp.Usage.CompletionTokens,
			TotalTokens:      openaiResp.Usage.TotalTokens,
		},
		Latency:  latency,
		Created:  time.Unix(openaiResp.Created, 0),
		Metadata: req.Metadata,
	}

	for i, choice := range openaiResp.Choices {
		resp.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: choice.FinishReason,
		}
	}

	return resp
}

// handleErrorResponse handles OpenAI error responses
func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp OpenAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", fmt.Sprintf("unexpected status %d", statusCode), statusCode, retryable, errors.New(string(body)))
	}

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OpenAI-specific request/response types

type OpenAIChatRequest struct {
	Model               string                `json:"model"`
	Messages            []OpenAIMessage       `json:"messages"`
	MaxTokens           *int                  `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int                  `json:"max_completion_tokens,omitempty"`
	Temperature         *float64              `json:"temperature,omitempty"`
	ResponseFormat      *OpenAIResponseFormat `json:"response_format,omitempty"`
}

type OpenAIResponseFormat struct {
	Type string `json:"type"`
}

type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type OpenAIErrorResponse struct {
	Error OpenAIError `json:"error"`
}

type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

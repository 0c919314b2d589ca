package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ChatMessage 发往提供商的一条对话消息
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Adapter 屏蔽各家提供商的请求/响应差异。新增提供商只需注册一个条目，
// 路由与测试代码不感知具体提供商。
type Adapter interface {
	BuildChatRequest(ctx context.Context, baseURL, apiKey, model string, messages []ChatMessage, maxTokens int, temperature float64) (*http.Request, error)
	ExtractReply(body []byte) (string, error)
	BuildTestRequest(ctx context.Context, baseURL, apiKey string) (*http.Request, error)
}

// Provider 目录条目。值类型，测试可以复制后改写 BaseURL 指向本地假服务
type Provider struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Color        string `json:"color"`
	BaseURL      string `json:"-"`
	DefaultModel string `json:"default_model"`

	Adapter Adapter `json:"-"`
}

// Registry 固定的提供商目录，构造后只读
type Registry struct {
	entries map[string]Provider
	order   []string
}

// NewRegistry 构建受支持提供商的目录
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]Provider)}

	for _, p := range []Provider{
		{
			ID:           "openai",
			Name:         "OpenAI GPT",
			Description:  "OpenAI chat completion models",
			Icon:         "openai",
			Color:        "#10a37f",
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o-mini",
			Adapter:      openAICompatible{},
		},
		{
			ID:           "groq",
			Name:         "Groq",
			Description:  "Groq hosted open models with low latency",
			Icon:         "groq",
			Color:        "#f55036",
			BaseURL:      "https://api.groq.com/openai/v1",
			DefaultModel: "llama-3.3-70b-versatile",
			Adapter:      openAICompatible{},
		},
		{
			ID:           "deepseek",
			Name:         "DeepSeek",
			Description:  "DeepSeek chat models",
			Icon:         "deepseek",
			Color:        "#4d6bfe",
			BaseURL:      "https://api.deepseek.com/v1",
			DefaultModel: "deepseek-chat",
			Adapter:      openAICompatible{},
		},
		{
			ID:           "gemini",
			Name:         "Google Gemini",
			Description:  "Google Gemini generative language models",
			Icon:         "gemini",
			Color:        "#4285f4",
			BaseURL:      "https://generativelanguage.googleapis.com",
			DefaultModel: "gemini-1.5-flash",
			Adapter:      geminiAdapter{},
		},
	} {
		r.entries[p.ID] = p
		r.order = append(r.order, p.ID)
	}

	return r
}

// Get 按 id 查找提供商
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.entries[id]
	return p, ok
}

// SetBaseURL 覆盖某提供商的端点，用于自建网关或兼容端点的部署
func (r *Registry) SetBaseURL(id, baseURL string) bool {
	p, ok := r.entries[id]
	if !ok {
		return false
	}
	p.BaseURL = baseURL
	r.entries[id] = p
	return true
}

// IDs 返回目录顺序的提供商 id 列表
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// openAICompatible 覆盖 openai/groq/deepseek 共享的 {model,messages} 请求形状，
// Bearer 头鉴权，回复取 choices[0].message.content
type openAICompatible struct{}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (openAICompatible) BuildChatRequest(ctx context.Context, baseURL, apiKey, model string, messages []ChatMessage, maxTokens int, temperature float64) (*http.Request, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

func (openAICompatible) ExtractReply(body []byte) (string, error) {
	var resp openAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (openAICompatible) BuildTestRequest(ctx context.Context, baseURL, apiKey string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// geminiAdapter Gemini 的 contents/parts 请求形状，密钥走查询串，
// 回复取 candidates[0].content.parts[0].text
type geminiAdapter struct{}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (geminiAdapter) BuildChatRequest(ctx context.Context, baseURL, apiKey, model string, messages []ChatMessage, maxTokens int, temperature float64) (*http.Request, error) {
	// Gemini 没有独立的 system 角色，按顺序拼接为单个 parts 文本
	text := ""
	for _, m := range messages {
		if text != "" {
			text += "\n\n"
		}
		text += m.Content
	}

	payload := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}}}
	payload.GenerationConfig.MaxOutputTokens = maxTokens
	payload.GenerationConfig.Temperature = temperature

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", baseURL, model, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (geminiAdapter) ExtractReply(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("provider error: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (geminiAdapter) BuildTestRequest(ctx context.Context, baseURL, apiKey string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models?key=%s", baseURL, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

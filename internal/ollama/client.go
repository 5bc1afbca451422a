package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hackjutsu/mini-chatbot/internal/config"
)

const maxErrorBodyBytes = 8 * 1024

const (
	defaultTemperature = 0.7
	defaultTopP        = 0.9
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type chatAPIRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type tagsAPIResponse struct {
	Models []struct {
		Model string `json:"model"`
		Name  string `json:"name"`
	} `json:"models"`
}

// Client talks to a single Ollama instance. Every request goes through one
// shared keep-alive transport.
type Client struct {
	chatURL    string
	tagsURL    string
	httpClient *http.Client
}

type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e UpstreamStatusError) Error() string {
	return fmt.Sprintf("ollama returned %d: %s", e.StatusCode, e.Body)
}

func NewTransport(cfg config.Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.UpstreamConnectTimeout,
		KeepAlive: cfg.UpstreamKeepAlive,
	}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.UpstreamMaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost: cfg.UpstreamMaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.UpstreamKeepAlive,
		ForceAttemptHTTP2:   true,
	}
}

func NewClient(cfg config.Config, httpClient *http.Client) (Client, error) {
	chatURL := strings.TrimSpace(cfg.OllamaChatURL)
	tagsURL, err := deriveTagsURL(chatURL)
	if err != nil {
		return Client{}, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewTransport(cfg)}
	}
	return Client{chatURL: chatURL, tagsURL: tagsURL, httpClient: httpClient}, nil
}

func deriveTagsURL(chatURL string) (string, error) {
	parsed, err := url.Parse(chatURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid ollama chat url %q", chatURL)
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/api/tags"}).String(), nil
}

func (c Client) OpenChatStream(ctx context.Context, model string, messages []Message) (io.ReadCloser, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model is required")
	}
	if len(messages) == 0 {
		return nil, errors.New("messages are required")
	}

	payload, err := json.Marshal(chatAPIRequest{
		Model:    strings.TrimSpace(model),
		Messages: messages,
		Stream:   true,
		Options:  chatOptions{Temperature: defaultTemperature, TopP: defaultTopP},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request ollama: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, UpstreamStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if resp.Body == nil {
		return nil, errors.New("ollama returned no body")
	}
	return resp.Body, nil
}

func (c Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tagsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build ollama tags request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request ollama tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, UpstreamStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed tagsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode ollama tags response: %w", err)
	}

	out := make([]string, 0, len(parsed.Models))
	seen := make(map[string]struct{}, len(parsed.Models))
	for _, model := range parsed.Models {
		name := strings.TrimSpace(model.Model)
		if name == "" {
			name = strings.TrimSpace(model.Name)
		}
		if name == "" {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

package ai

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "ollama"}, ListProviders())
	assert.Nil(t, GetProvider("nope"))
}

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}
	assert.Equal(t, "https://api.anthropic.com/v1/messages", p.BuildURL(""))
	assert.Equal(t, "http://proxy:8080/v1/messages", p.BuildURL("http://proxy:8080/"))
}

func TestAnthropicProvider_Request(t *testing.T) {
	p := &AnthropicProvider{}
	body, err := p.BuildRequestBody("m", []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, nil, 0)
	require.NoError(t, err)

	assert.JSONEq(t, `{"model":"m","max_tokens":1024,"system":"be brief","messages":[{"role":"user","content":"hi"}]}`, string(body))
}

func TestAnthropicProvider_Headers(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	p := &AnthropicProvider{}
	req := httptest.NewRequest("POST", "/", nil)
	p.SetHeaders(req)

	assert.True(t, p.Available())
	assert.Equal(t, "sk-test", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))

	t.Setenv("ANTHROPIC_API_KEY", "")
	assert.False(t, p.Available())
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}
	resp, err := p.ParseResponse([]byte(`{
		"model":"m",
		"content":[{"type":"text","text":"{\"a\":"},{"type":"tool_use"},{"type":"text","text":"1}"}],
		"stop_reason":"end_turn",
		"usage":{"input_tokens":10,"output_tokens":3}
	}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)

	_, err = p.ParseResponse([]byte("nope"))
	assert.Error(t, err)
}

func TestOllamaProvider_BuildURL(t *testing.T) {
	p := &OllamaProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty uses default", "", "http://localhost:11434/v1/chat/completions"},
		{"custom base URL", "http://myserver:8080/v1", "http://myserver:8080/v1/chat/completions"},
		{"trailing slash handled", "http://localhost:11434/v1/", "http://localhost:11434/v1/chat/completions"},
		{"already has endpoint", "http://localhost:11434/v1/chat/completions", "http://localhost:11434/v1/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestOllamaProvider_Request(t *testing.T) {
	p := &OllamaProvider{}
	temp := 0.0
	body, err := p.BuildRequestBody("llama", []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}}, &temp, 512)
	require.NoError(t, err)

	assert.Contains(t, string(body), `"role":"system"`)
	assert.Contains(t, string(body), `"temperature":0`)
	assert.Contains(t, string(body), `"max_tokens":512`)

	body, err = p.BuildRequestBody("llama", nil, nil, 0)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "max_tokens")
}

func TestOllamaProvider_ParseResponse(t *testing.T) {
	p := &OllamaProvider{}
	_, err := p.ParseResponse([]byte(`{"choices":[]}`))
	assert.Error(t, err)

	resp, err := p.ParseResponse([]byte(`{"model":"llama","choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

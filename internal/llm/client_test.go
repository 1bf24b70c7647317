package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   100,
		Temperature: 0.3,
		Timeout:     5,
	}
}

func TestSimpleChat(t *testing.T) {
	t.Parallel()

	var gotRequest ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "hello back"}}},
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	response, err := client.SimpleChat(context.Background(), "hello", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "hello back", response)

	require.Len(t, gotRequest.Messages, 2)
	assert.Equal(t, "system", gotRequest.Messages[0].Role)
	assert.Equal(t, "be brief", gotRequest.Messages[0].Content)
	assert.Equal(t, "hello", gotRequest.Messages[1].Content)
	assert.Equal(t, "test-model", gotRequest.Model)
}

func TestSimpleChatAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(ChatResponse{
			Error: &Error{Message: "rate limited", Type: "rate_limit"},
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSimpleChatEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.SimpleChat(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(&Config{})
	assert.Error(t, err)

	_, err = NewClient(testConfig("http://localhost"))
	assert.NoError(t, err)
}

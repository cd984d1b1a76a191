package textgen

//go:generate mockgen -source=textgen.go -destination=mocks/mocks.go -package=mocks Generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletions(t *testing.T, content string, seen *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if seen != nil && len(body.Messages) > 1 {
			*seen = body.Messages[1].Content
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   body.Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(Config{}, nil)
	assert.Error(t, err)
}

func TestOpenAI_Generate(t *testing.T) {
	var prompt string
	srv := fakeCompletions(t, "  Troops mass at the border.  ", &prompt)
	defer srv.Close()

	g, err := NewOpenAI(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "summarise")
	require.NoError(t, err)
	assert.Equal(t, "Troops mass at the border.", out)
	assert.Equal(t, "summarise", prompt)
}

func TestOpenAI_EmptyResponse(t *testing.T) {
	srv := fakeCompletions(t, "   ", nil)
	defer srv.Close()

	g, err := NewOpenAI(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAI_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g, err := NewOpenAI(Config{APIKey: "test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "x")
	assert.Error(t, err)
}

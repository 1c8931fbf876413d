package infra

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pyama86/quera/domain/model"
	"github.com/stretchr/testify/assert"
)

func geminiBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestGemini_TagQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, geminiBody(`{"category":"complaint","priority":5}`))
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", server.URL)

	tag, err := NewGemini().TagQuery(context.Background(), "My payment failed, please help urgently")
	assert.NoError(t, err)
	assert.Equal(t, &model.Tag{Category: "complaint", Priority: 5}, tag)
}

func TestGemini_TagQuery_MarkdownFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, geminiBody("```json\n{\"category\":\"feedback\",\"priority\":1}\n```"))
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", server.URL)

	tag, err := NewGemini().TagQuery(context.Background(), "thanks for the great support!")
	assert.NoError(t, err)
	assert.Equal(t, &model.Tag{Category: "feedback", Priority: 1}, tag)
}

func TestGemini_TagQuery_UnparseableText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, geminiBody("I could not classify this query, sorry."))
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", server.URL)

	// パース失敗はエラーにせずデフォルトへフォールバックする
	tag, err := NewGemini().TagQuery(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, model.DefaultTag(), tag)
}

func TestGemini_TagQuery_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", server.URL)

	tag, err := NewGemini().TagQuery(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, model.DefaultTag(), tag)
}

func TestGemini_TagQuery_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", server.URL)

	_, err := NewGemini().TagQuery(context.Background(), "hello")
	assert.Error(t, err)
}

func TestGemini_TagQuery_MissingCredential(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewGemini().TagQuery(context.Background(), "hello")
	assert.Error(t, err)
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *model.Tag
	}{
		{"plain json", `{"category":"question","priority":3}`, &model.Tag{Category: "question", Priority: 3}},
		{"fenced json", "```json\n{\"category\":\"request\",\"priority\":4}\n```", &model.Tag{Category: "request", Priority: 4}},
		{"fence without language", "```\n{\"category\":\"other\",\"priority\":2}\n```", &model.Tag{Category: "other", Priority: 2}},
		{"garbage", "no json here", model.DefaultTag()},
		{"empty object", "{}", model.DefaultTag()},
		{"out of range priority", `{"category":"question","priority":42}`, &model.Tag{Category: "question", Priority: 3}},
		{"unknown category", `{"category":"billing","priority":4}`, &model.Tag{Category: "other", Priority: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTag(tt.text))
		})
	}
}

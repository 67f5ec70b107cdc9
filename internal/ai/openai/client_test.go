package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/spigell/autocv/internal/ai"
	"github.com/spigell/autocv/internal/settings"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req goopenai.ChatCompletionRequest)) (*httptest.Server, *[]*http.Request) {
	t.Helper()
	var seen []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req goopenai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func testSettings(baseURL string) settings.Settings {
	return settings.Settings{
		Provider:        settings.ProviderOpenRouter,
		Model:           "openai/gpt-4o-mini",
		APIKey:          "sk-test-123456",
		BaseURL:         baseURL,
		Temperature:     0.4,
		MaxOutputTokens: 4000,
	}
}

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	var got goopenai.ChatCompletionRequest
	srv, seen := newTestServer(t, func(w http.ResponseWriter, req goopenai.ChatCompletionRequest) {
		got = req
		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
			Choices: []goopenai.ChatCompletionChoice{{
				Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: "\\section{Experience}"},
			}},
		})
	})

	backend, err := New(context.Background(), testSettings(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := backend.Complete(context.Background(), ai.Request{
		Settings: testSettings(srv.URL + "/v1/"),
		System:   "be precise",
		Prompt:   "write a cv",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "\\section{Experience}" {
		t.Fatalf("unexpected output %q", out)
	}

	if len(*seen) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(*seen))
	}
	if auth := (*seen)[0].Header.Get("Authorization"); auth != "Bearer sk-test-123456" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
	if got.Model != "openai/gpt-4o-mini" || got.MaxTokens != 4000 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Temperature < 0.39 || got.Temperature > 0.41 {
		t.Fatalf("unexpected temperature %v", got.Temperature)
	}
	if len(got.Messages) != 2 ||
		got.Messages[0].Role != goopenai.ChatMessageRoleSystem || got.Messages[0].Content != "be precise" ||
		got.Messages[1].Role != goopenai.ChatMessageRoleUser || got.Messages[1].Content != "write a cv" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	cases := map[string]goopenai.ChatCompletionResponse{
		"no choices": {},
		"blank content": {Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{Content: "   "},
		}}},
	}

	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w http.ResponseWriter, _ goopenai.ChatCompletionRequest) {
				_ = json.NewEncoder(w).Encode(resp)
			})
			backend, err := New(context.Background(), testSettings(srv.URL+"/v1"))
			if err != nil {
				t.Fatal(err)
			}
			_, err = backend.Complete(context.Background(), ai.Request{Settings: testSettings(srv.URL + "/v1")})
			if !errors.Is(err, ai.ErrEmptyResponse) {
				t.Fatalf("expected ErrEmptyResponse, got %v", err)
			}
		})
	}
}

func TestCompleteProviderErrorIsReturned(t *testing.T) {
	srv, seen := newTestServer(t, func(w http.ResponseWriter, _ goopenai.ChatCompletionRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	})

	backend, err := New(context.Background(), testSettings(srv.URL+"/v1"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = backend.Complete(context.Background(), ai.Request{Settings: testSettings(srv.URL + "/v1")})

	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", apiErr.HTTPStatusCode)
	}
	if len(*seen) != 1 {
		t.Fatalf("failed call must not be retried, got %d requests", len(*seen))
	}
}

func TestNewValidation(t *testing.T) {
	s := testSettings("")
	s.APIKey = " "
	if _, err := New(context.Background(), s); err == nil {
		t.Fatal("expected error for missing api key")
	}

	s = testSettings("")
	s.Provider = settings.ProviderGemini
	if _, err := New(context.Background(), s); err == nil {
		t.Fatal("expected error when no base url is known")
	}
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnalyze(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze" {
			t.Errorf("path = %s, want /api/analyze", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ScoreResult{
			IsInScope:         true,
			ConfidenceScore:   0.82,
			SuggestedWorkflow: "book_trailer",
		})
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL, APIKey: "test-key"})
	score, err := client.Analyze(context.Background(), "a title", "a question", &MarketContext{
		Market: "indie_authors",
		Tone:   "encouraging",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !score.IsInScope || score.ConfidenceScore != 0.82 {
		t.Errorf("unexpected score: %+v", score)
	}
	if gotBody["task"] != "analyze_capability" {
		t.Errorf("task = %v, want analyze_capability", gotBody["task"])
	}
	if gotBody["question"] != "a question" || gotBody["title"] != "a title" {
		t.Errorf("question/title not forwarded: %v", gotBody)
	}
	mc, _ := gotBody["market_context"].(map[string]interface{})
	if mc == nil || mc["market"] != "indie_authors" {
		t.Errorf("market context not forwarded: %v", gotBody["market_context"])
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["task"] != "generate_response" {
			t.Errorf("task = %v", body["task"])
		}
		if body["workflow_id"] != "book_trailer" {
			t.Errorf("workflow_id = %v", body["workflow_id"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(DraftResult{
			ResponseText: "Try a short teaser video.",
			WorkflowLink: "https://app.mulan.ai/workflow/book-trailer",
		})
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	draft, err := client.Generate(context.Background(), "a question", &MarketContext{Tone: "encouraging"}, "book_trailer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.ResponseText != "Try a short teaser video." {
		t.Errorf("unexpected draft: %+v", draft)
	}
}

func TestAnalyzeAPIError(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "server error", status: 500, transient: true},
		{name: "throttled", status: 429, transient: true},
		{name: "bad request", status: 400, transient: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))
			defer srv.Close()

			client := NewClient(&Config{BaseURL: srv.URL})
			_, err := client.Analyze(context.Background(), "t", "q", nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("got %v, want APIError", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tc.status)
			}
			if apiErr.Transient() != tc.transient {
				t.Errorf("Transient() = %v, want %v", apiErr.Transient(), tc.transient)
			}
			if apiErr.Message != "nope" {
				t.Errorf("message = %q, want body error field", apiErr.Message)
			}
		})
	}
}

func TestAnalyzeTransportError(t *testing.T) {
	// Point at a closed server so the dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	_, err := client.Analyze(context.Background(), "t", "q", nil)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("got %v, want TransportError", err)
	}
	if !terr.Transient() {
		t.Error("transport errors must be transient")
	}
}

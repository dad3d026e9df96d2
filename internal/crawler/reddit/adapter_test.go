package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/timmy/leadscout/internal/crawler"
)

func searchParamsFor(subreddit string, queries ...string) crawler.SearchParams {
	return crawler.SearchParams{
		Subreddits: []string{subreddit},
		Queries:    queries,
		Limit:      20,
	}
}

func searchPayload(ids ...string) map[string]interface{} {
	children := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		children = append(children, map[string]interface{}{
			"data": map[string]interface{}{
				"id":          id,
				"title":       "Need a book trailer for " + id,
				"selftext":    "some body",
				"author":      "u_author",
				"permalink":   "/r/selfpublish/comments/" + id + "/",
				"ups":         5,
				"created_utc": 1756000000.0,
			},
		})
	}
	return map[string]interface{}{
		"data": map[string]interface{}{"children": children},
	}
}

func TestFetchDedupsAcrossQueries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/selfpublish/search.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("restrict_sr") != "1" {
			t.Error("restrict_sr not set")
		}
		// Both queries return overlapping results.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchPayload("abc", "def"))
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0"})
	a.client.SetBaseURL(srv.URL)

	posts, err := a.Fetch(context.Background(), searchParamsFor("selfpublish", "book trailer", "promote novel"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 after dedup", len(posts))
	}
	if posts[0].PostID != "abc" || posts[0].Author != "u_author" {
		t.Errorf("unexpected post: %+v", posts[0])
	}
	if posts[0].URL != publicBaseURL+"/r/selfpublish/comments/abc/" {
		t.Errorf("url = %s", posts[0].URL)
	}
	if posts[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
}

func TestFetchNewListingWithoutQueries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/selfpublish/new.json" {
			t.Errorf("path = %s, want the new listing", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchPayload("abc"))
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0"})
	a.client.SetBaseURL(srv.URL)

	posts, err := a.Fetch(context.Background(), searchParamsFor("selfpublish"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].PostID != "abc" {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func TestFetchSkipsFailingSubreddit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/selfpublish/search.json" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchPayload("xyz"))
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0"})
	a.client.SetBaseURL(srv.URL)

	posts, err := a.Fetch(context.Background(), crawler.SearchParams{
		Subreddits: []string{"selfpublish", "writing"},
		Queries:    []string{"book trailer"},
		Limit:      20,
	})
	if err != nil {
		t.Fatalf("one failing subreddit must not fail the fetch: %v", err)
	}
	if len(posts) != 1 || posts[0].PostID != "xyz" {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0"})
	a.client.SetBaseURL(srv.URL)

	if _, err := a.Fetch(context.Background(), searchParamsFor("selfpublish", "book trailer")); err == nil {
		t.Fatal("expected error on HTTP 403")
	}
}

func TestFetchComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/comments/abc.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		// Reddit returns [post listing, comment listing].
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]interface{}{
			searchPayload("abc"),
			map[string]interface{}{
				"data": map[string]interface{}{
					"children": []map[string]interface{}{
						{"data": map[string]interface{}{"id": "c1", "body": "great question", "author": "u1", "ups": 3}},
						{"data": map[string]interface{}{"id": "c2", "body": "", "author": "u2"}}, // skipped
					},
				},
			},
		})
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0"})
	a.client.SetBaseURL(srv.URL)

	comments, err := a.FetchComments(context.Background(), "abc", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("got %d comments, want 1 (empty body skipped)", len(comments))
	}
	if comments[0].CommentID != "c1" || comments[0].Body != "great question" {
		t.Errorf("unexpected comment: %+v", comments[0])
	}
}

func TestPostComment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/comment" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if got := r.PostFormValue("thing_id"); got != "t3_abc" {
			t.Errorf("thing_id = %s, want t3_abc", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"json": map[string]interface{}{
				"errors": []interface{}{},
				"data": map[string]interface{}{
					"things": []map[string]interface{}{
						{"data": map[string]interface{}{"permalink": "/r/selfpublish/comments/abc/x/c9"}},
					},
				},
			},
		})
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0", AccessToken: "tok"})
	a.oauthClient.SetBaseURL(srv.URL)

	result, err := a.Post(context.Background(), "abc", "my reply")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
	if result.RemoteURL != publicBaseURL+"/r/selfpublish/comments/abc/x/c9" {
		t.Errorf("remote url = %s", result.RemoteURL)
	}
}

func TestPostCommentAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"json": map[string]interface{}{
				"errors": []interface{}{[]interface{}{"RATELIMIT", "try again", "ratelimit"}},
			},
		})
	}))
	defer srv.Close()

	a := NewAdapter(&Config{UserAgent: "test/1.0", AccessToken: "tok"})
	a.oauthClient.SetBaseURL(srv.URL)

	result, err := a.Post(context.Background(), "abc", "my reply")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("API-level errors must fail the post")
	}
}

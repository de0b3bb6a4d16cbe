package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shelfmap/shelfmap/internal/model"
)

// TestKindOf tests error kind extraction.
func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"transient error", Transient("https://x.test/", errors.New("timeout")), KindTransient},
		{"challenge error", Challenge("https://x.test/", nil), KindChallenge},
		{"permanent error", Permanent("https://x.test/", errors.New("404")), KindPermanent},
		{"wrapped explorer error", fmt.Errorf("worker: %w", Challenge("https://x.test/", nil)), KindChallenge},
		{"plain error defaults to transient", errors.New("boom"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, expected %q", got, tt.want)
			}
		})
	}
}

// TestErrorMessage tests the error string format.
func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := Transient("https://x.test/c", errors.New("connection reset"))
	want := "explore https://x.test/c: transient failure: connection reset"
	if err.Error() != want {
		t.Errorf("Error() = %q, expected %q", err.Error(), want)
	}

	bare := Challenge("https://x.test/c", nil)
	want = "explore https://x.test/c: challenge failure"
	if bare.Error() != want {
		t.Errorf("Error() = %q, expected %q", bare.Error(), want)
	}
}

// TestClassifyResponse tests HTTP status and body classification.
func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
		ok     bool
	}{
		{"200 plain page", 200, "<html></html>", "", true},
		{"429 rate limit", 429, "", KindTransient, false},
		{"403 bot wall", 403, "", KindChallenge, false},
		{"503 outage", 503, "", KindTransient, false},
		{"404 missing", 404, "", KindPermanent, false},
		{"410 gone", 410, "", KindPermanent, false},
		{"200 with captcha body", 200, "<p>Please solve this CAPTCHA</p>", KindChallenge, false},
		{"200 with browser check", 200, "Checking your browser before accessing", KindChallenge, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := classifyResponse("https://x.test/c", tt.status, []byte(tt.body))
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("kind = %q, expected %q", got, tt.want)
			}
		})
	}
}

// TestHTTPExplorerExplore tests candidate extraction from a live test server.
func TestHTTPExplorerExplore(t *testing.T) {
	t.Parallel()

	page := `<html><body>
		<nav>
			<a href="/c/women">Women</a>
			<a href="/c/men">  Men's   Clothing </a>
			<a href="/c/women">Women duplicate</a>
			<a href="/help/contact">Contact</a>
			<a href="#top">Back to top</a>
			<a href="javascript:void(0)">Menu</a>
			<a href="https://tracker.example.net/pixel">Tracker</a>
		</nav>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)

	t.Run("fetches and filters category links", func(t *testing.T) {
		t.Parallel()

		e := NewHTTPExplorer(srv.Client(), WithCategoryPatterns([]string{"/c/*"}))
		candidates, err := e.Explore(context.Background(), srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(candidates) != 2 {
			t.Fatalf("got %d candidates, expected 2: %+v", len(candidates), candidates)
		}
		if candidates[0].Name != "Women" {
			t.Errorf("first candidate name = %q, expected Women", candidates[0].Name)
		}
	})

	t.Run("extractCandidates applies pattern and dedup", func(t *testing.T) {
		t.Parallel()

		candidates, err := extractCandidates("https://shop.example.com/", []byte(page), []string{"/c/*"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []model.ChildCandidate{
			{Name: "Women", URL: "https://shop.example.com/c/women"},
			{Name: "Men's Clothing", URL: "https://shop.example.com/c/men"},
		}
		if len(candidates) != len(want) {
			t.Fatalf("got %d candidates, expected %d: %+v", len(candidates), len(want), candidates)
		}
		for i, c := range candidates {
			if c.URL != want[i].URL {
				t.Errorf("candidate %d URL = %q, expected %q", i, c.URL, want[i].URL)
			}
			if c.Name != want[i].Name {
				t.Errorf("candidate %d Name = %q, expected %q", i, c.Name, want[i].Name)
			}
		}
	})

	t.Run("no patterns admits all same-site links", func(t *testing.T) {
		t.Parallel()

		candidates, err := extractCandidates("https://shop.example.com/", []byte(page), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// women, men, contact; tracker is cross-site, fragments and
		// javascript hrefs are dropped, duplicate collapsed.
		if len(candidates) != 3 {
			t.Fatalf("got %d candidates, expected 3: %+v", len(candidates), candidates)
		}
	})

	t.Run("server error maps to transient", func(t *testing.T) {
		t.Parallel()

		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(failing.Close)

		e := NewHTTPExplorer(failing.Client())
		_, err := e.Explore(context.Background(), failing.URL+"/")
		if got := KindOf(err); got != KindTransient {
			t.Errorf("kind = %q, expected transient", got)
		}
	})

	t.Run("cancelled context surfaces context error", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e := NewHTTPExplorer(srv.Client())
		_, err := e.Explore(ctx, srv.URL+"/")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestMatchesPatterns tests category pattern matching.
func TestMatchesPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		patterns []string
		want     bool
	}{
		{"prefix glob matches nested path", "https://x.test/c/women/shoes", []string{"/c/*"}, true},
		{"prefix glob rejects other path", "https://x.test/help", []string{"/c/*"}, false},
		{"exact glob", "https://x.test/category", []string{"/category"}, true},
		{"query string ignored", "https://x.test/list?cat=1", []string{"/list"}, true},
		{"no patterns matches all", "https://x.test/anything", nil, true},
		{"multiple patterns", "https://x.test/dept/2", []string{"/c/*", "/dept/*"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchesPatterns(tt.url, tt.patterns); got != tt.want {
				t.Errorf("matchesPatterns(%q, %v) = %v, expected %v", tt.url, tt.patterns, got, tt.want)
			}
		})
	}
}

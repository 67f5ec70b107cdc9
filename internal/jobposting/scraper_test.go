package jobposting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

const linkedInPage = `<!doctype html>
<html><body>
  <h1 class="top-card-layout__title">  Backend   Engineer </h1>
  <a class="topcard__org-name-link" href="/company/acme">
      Acme Corp
  </a>
  <div class="description__text">
    <p>Build APIs in Go.</p>
  </div>
  <ul class="description__job-criteria-list">
    <li> Mid-Senior   level </li>
    <li>Full-time</li>
    <li>   </li>
  </ul>
</body></html>`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(linkedInPage))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Title != "Backend Engineer" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if p.Company != "Acme Corp" {
		t.Fatalf("unexpected company %q", p.Company)
	}
	if p.Description != "Build APIs in Go." {
		t.Fatalf("unexpected description %q", p.Description)
	}
	want := []string{"Mid-Senior level", "Full-time"}
	if !reflect.DeepEqual(p.Requirements, want) {
		t.Fatalf("unexpected requirements %#v", p.Requirements)
	}
}

func TestParseFallbacks(t *testing.T) {
	p, err := Parse(strings.NewReader("<html><body><p>nothing here</p></body></html>"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Title != NotAvailable || p.Company != NotAvailable || p.Description != NotAvailable {
		t.Fatalf("expected N/A fallbacks, got %#v", p)
	}
	if len(p.Requirements) != 0 {
		t.Fatalf("expected no requirements, got %#v", p.Requirements)
	}
}

func TestScraperFetch(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		if r.URL.Path != "/jobs/view/1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(linkedInPage))
	}))
	defer srv.Close()

	s := NewScraper(ScraperOptions{UserAgent: "test-agent"})

	p, err := s.Fetch(context.Background(), srv.URL+"/jobs/view/1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Title != "Backend Engineer" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if userAgent != "test-agent" {
		t.Fatalf("unexpected user agent %q", userAgent)
	}

	if _, err := s.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error for 404 page")
	}
}

func TestScraperRejectsInvalidURL(t *testing.T) {
	s := NewScraper(ScraperOptions{})
	for _, raw := range []string{"", "not a url", "ftp://example.com/job", "/relative/path"} {
		if _, err := s.Fetch(context.Background(), raw); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: expected ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestScraperHonoursCancellation(t *testing.T) {
	s := NewScraper(ScraperOptions{RequestsPerSecond: 0.001})
	s.limiter.limiterFor("example.invalid").Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Fetch(ctx, "https://example.invalid/job"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

package jobposting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; autocv/1.0)"
	maxBodyBytes     = 5 << 20
)

// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid job url")

// ScraperOptions configures a Scraper.
type ScraperOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Scraper downloads a job posting page and extracts a Posting from it.
type Scraper struct {
	client    *http.Client
	limiter   *hostLimiter
	userAgent string
	logger    *zap.Logger
}

// NewScraper creates a scraper. Zero options fall back to a 10s timeout and no rate limit.
func NewScraper(opts ScraperOptions) *Scraper {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scraper{
		client:    client,
		limiter:   newHostLimiter(opts.RequestsPerSecond, 1),
		userAgent: ua,
		logger:    log,
	}
}

// Fetch downloads rawURL and parses it with Parse.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (Posting, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Posting{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if err := s.limiter.waitURL(ctx, u); err != nil {
		return Posting{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Posting{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return Posting{}, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Posting{}, fmt.Errorf("fetch %s: unexpected status %d", u.Host, resp.StatusCode)
	}

	p, err := Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Posting{}, err
	}

	s.logger.Info("job posting fetched",
		zap.String("host", u.Host),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("title", p.Title),
		zap.Int("requirements", len(p.Requirements)),
	)

	return p, nil
}

// Parse extracts a posting from an HTML page laid out like a public LinkedIn job page.
// Missing title, company or description become "N/A".
func Parse(r io.Reader) (Posting, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Posting{}, fmt.Errorf("parse job posting: %w", err)
	}

	p := Posting{
		Title:       firstText(doc, "h1", true),
		Company:     firstText(doc, "a.topcard__org-name-link", true),
		Description: firstText(doc, "div.description__text", false),
	}

	doc.Find(".description__job-criteria-list li").Each(func(_ int, li *goquery.Selection) {
		if t := cleanText(li.Text()); t != "" {
			p.Requirements = append(p.Requirements, t)
		}
	})

	return p, nil
}

func firstText(doc *goquery.Document, selector string, collapse bool) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return NotAvailable
	}
	text := strings.TrimSpace(sel.Text())
	if collapse {
		text = cleanText(text)
	}
	if text == "" {
		return NotAvailable
	}
	return text
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/metrics"
)

// ErrNoProductData signals that a page was fetched but neither a title nor a
// price could be extracted from it.
var ErrNoProductData = errors.New("scraper: no significant product data found")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// Result holds the best-effort product data extracted from a page.
type Result struct {
	Title       string
	Price       float64
	ImageURL    string
	Description string
	Brand       string
}

// Scraper extracts product information from arbitrary retailer pages using
// layered CSS-selector fallbacks. It is best effort only; callers must treat
// any field, including the price, as possibly missing.
type Scraper struct {
	client *http.Client
	log    *zap.Logger
}

// Option customises a Scraper.
type Option func(*Scraper)

// WithHTTPClient overrides the HTTP client, primarily for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) {
		if client != nil {
			s.client = client
		}
	}
}

// New constructs a Scraper with a 30 second default timeout.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger.WithModule("scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch downloads the page and extracts product data from it.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		metrics.ScrapeAttempts.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,es;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.ScrapeAttempts.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("scraper: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ScrapeAttempts.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("scraper: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		metrics.ScrapeAttempts.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("scraper: parse html: %w", err)
	}

	result := s.Extract(doc, pageURL)
	if result.Title == "" && result.Price == 0 {
		metrics.ScrapeAttempts.WithLabelValues("failure").Inc()
		return nil, ErrNoProductData
	}

	metrics.ScrapeAttempts.WithLabelValues("success").Inc()
	s.log.Info("product page scraped",
		zap.String("url", pageURL),
		zap.String("title", result.Title),
		zap.Float64("price", result.Price),
	)
	return result, nil
}

// Extract pulls product fields out of a parsed document. Exported separately
// so the selector logic is testable without HTTP.
func (s *Scraper) Extract(doc *goquery.Document, pageURL string) *Result {
	result := &Result{}

	priceSelectors := []string{
		`[itemprop="price"]`, `[property="product:price:amount"]`,
		`meta[property="product:price:amount"]`,
		".price", ".Price", `[class*="price"]`, `[id*="price"]`,
		".product-price", ".current-price", ".sale-price", ".final-price",
	}
	priceText := extract(doc, priceSelectors, "content")
	if priceText == "" {
		priceText = extract(doc, priceSelectors, "")
	}
	if priceText != "" {
		result.Price = ParsePrice(priceText)
	}

	result.Title = extract(doc, []string{
		`meta[property="og:title"]`, `meta[name="twitter:title"]`,
	}, "content")
	if result.Title == "" {
		result.Title = extract(doc, []string{
			"h1", ".product-title", ".product-name", ".pdp-title", `[itemprop="name"]`,
		}, "")
	}
	if result.Title == "" {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	img := extract(doc, []string{
		`meta[property="og:image"]`, `meta[name="twitter:image"]`,
	}, "content")
	if img == "" {
		img = extract(doc, []string{
			".product-image img", ".main-image img", ".gallery-image img", "img.product-main-image",
		}, "src")
	}
	result.ImageURL = absoluteURL(img, pageURL)

	result.Description = extract(doc, []string{
		`meta[property="og:description"]`, `meta[name="description"]`,
	}, "content")
	if result.Description == "" {
		result.Description = extract(doc, []string{
			".product-description", ".description", `[itemprop="description"]`,
		}, "")
	}

	result.Brand = extract(doc, []string{
		`meta[property="product:brand"]`,
	}, "content")
	if result.Brand == "" {
		result.Brand = extract(doc, []string{
			`[itemprop="brand"] [itemprop="name"]`, `[itemprop="brand"]`, ".product-brand", ".brand-name",
		}, "")
	}

	result.Title = clip(result.Title, 200)
	result.ImageURL = clip(result.ImageURL, 1000)
	result.Description = clip(result.Description, 1000)
	result.Brand = clip(result.Brand, 100)
	return result
}

// extract returns the first non-empty match across the selector list, taking
// the named attribute when attr is set, otherwise the element text.
func extract(doc *goquery.Document, selectors []string, attr string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		var value string
		if attr != "" {
			value = sel.AttrOr(attr, "")
		} else {
			value = sel.Text()
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

var priceCandidate = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})*[.,]\d{2,3}|\d+[.,]\d{2,3}|\d+`)

// ParsePrice normalizes a raw price string to a float. It handles both
// 1,234.56 and 1.234,56 conventions and strips currency symbols.
func ParsePrice(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)

	match := priceCandidate.FindString(cleaned)
	if match == "" {
		return 0
	}

	lastComma := strings.LastIndex(match, ",")
	lastDot := strings.LastIndex(match, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both separators present: the rightmost one is the decimal mark.
		if lastComma > lastDot {
			match = strings.ReplaceAll(match, ".", "")
			match = strings.Replace(match, ",", ".", 1)
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(match, ",") > 1 {
			match = strings.ReplaceAll(match, ",", "")
		} else {
			match = strings.Replace(match, ",", ".", 1)
		}
	case strings.Count(match, ".") > 1:
		match = strings.ReplaceAll(match, ".", "")
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return price
}

func absoluteURL(href, base string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

func clip(value string, max int) string {
	if len(value) > max {
		return value[:max]
	}
	return value
}

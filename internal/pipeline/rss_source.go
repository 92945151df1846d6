package pipeline

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/k3a/html2text"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/models"
)

const (
	defaultRSSInterval = 15 * time.Minute
	maxParallelFeeds   = 4
)

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// RSSSource implements Source for news RSS feeds
type RSSSource struct {
	name     string
	urls     []string
	interval time.Duration
	client   *http.Client
}

// NewRSSSource creates a new RSS source. A zero interval uses 15 minutes.
func NewRSSSource(name string, urls []string, interval time.Duration) *RSSSource {
	if interval <= 0 {
		interval = defaultRSSInterval
	}
	return &RSSSource{
		name:     name,
		urls:     urls,
		interval: interval,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the source name
func (r *RSSSource) Name() string {
	return r.name
}

// Interval returns the polling interval
func (r *RSSSource) Interval() time.Duration {
	return r.interval
}

// Fetch reads all feeds concurrently. Failing feeds are logged and skipped;
// an error is returned only when every feed failed.
func (r *RSSSource) Fetch(ctx context.Context) ([]models.Incident, error) {
	results := make([][]models.Incident, len(r.urls))

	var mu sync.Mutex
	var failures apperrors.MultiError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFeeds)
	for i, url := range r.urls {
		i, url := i, url
		g.Go(func() error {
			incidents, err := r.fetchFromURL(gctx, url)
			if err != nil {
				logger.Warn("RSS feed failed", "source", r.name, "url", url, "error", err)
				mu.Lock()
				failures.Add(fmt.Errorf("%s: %w", url, err))
				mu.Unlock()
				return nil
			}
			results[i] = incidents
			return nil
		})
	}
	_ = g.Wait()

	if len(r.urls) > 0 && len(failures.Errors) == len(r.urls) {
		return nil, fmt.Errorf("all %d feeds failed: %w", len(r.urls), failures)
	}

	var all []models.Incident
	for _, incidents := range results {
		all = append(all, incidents...)
	}
	return all, nil
}

// fetchFromURL fetches and parses RSS from a single URL
func (r *RSSSource) fetchFromURL(ctx context.Context, url string) ([]models.Incident, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Detecta-Monitor/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch RSS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var rss RSS
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, fmt.Errorf("parse RSS: %w", err)
	}

	return r.convertToIncidents(rss), nil
}

// convertToIncidents maps RSS items to incidents. Descriptions are reduced to
// plain text.
func (r *RSSSource) convertToIncidents(rss RSS) []models.Incident {
	incidents := make([]models.Incident, 0, len(rss.Channel.Items))

	for _, item := range rss.Channel.Items {
		inc := models.Incident{
			Source:     r.name,
			Title:      strings.TrimSpace(html2text.HTML2Text(item.Title)),
			Summary:    strings.TrimSpace(html2text.HTML2Text(item.Description)),
			URL:        strings.TrimSpace(item.Link),
			DetectedAt: time.Now().UTC(),
		}
		if inc.URL == "" {
			inc.URL = strings.TrimSpace(item.GUID)
		}
		if raw, err := json.Marshal(item); err == nil {
			inc.Raw = string(raw)
		}
		inc.PublishedAt = parsePubDate(item.PubDate)

		incidents = append(incidents, inc)
	}

	return incidents
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// RSS represents the RSS feed structure
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the RSS channel
type Channel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	Items       []Item `xml:"item"`
}

// Item represents an RSS item
type Item struct {
	Title       string `xml:"title" json:"title"`
	Description string `xml:"description" json:"description"`
	Link        string `xml:"link" json:"link"`
	PubDate     string `xml:"pubDate" json:"pub_date"`
	GUID        string `xml:"guid" json:"guid"`
}

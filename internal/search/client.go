// Package search looks up DuckDuckGo instant answers.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lojasmm/lmbot/internal/cache"
)

const (
	apiURL         = "https://api.duckduckgo.com/"
	requestTimeout = 10 * time.Second
)

var ErrEmptyQuery = errors.New("empty search query")

// Topic is one related result.
type Topic struct {
	Text string
	URL  string
}

// Result is an instant answer. Any field may be empty.
type Result struct {
	Heading     string
	Abstract    string
	AbstractURL string
	Answer      string
	Related     []Topic
}

// Empty reports whether the answer carries nothing worth showing.
func (r *Result) Empty() bool {
	return r.Abstract == "" && r.Answer == "" && len(r.Related) == 0
}

type apiResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	RelatedTopics []apiTopic `json:"RelatedTopics"`
}

// apiTopic is either a result or a named group of results.
type apiTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []apiTopic `json:"Topics"`
}

// Client caches results per normalized query.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.TTL[string, *Result]
}

// NewClient returns a client that keeps results for ttl.
func NewClient(ttl time.Duration) *Client {
	return &Client{
		baseURL: apiURL,
		http:    &http.Client{Timeout: requestTimeout},
		cache:   cache.NewTTL[string, *Result](ttl),
	}
}

// Search returns the instant answer for query, from cache when fresh.
func (c *Client) Search(ctx context.Context, query string) (*Result, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return nil, ErrEmptyQuery
	}
	return c.cache.GetOrFetch(ctx, key, func(ctx context.Context) (*Result, error) {
		return c.fetch(ctx, key)
	})
}

func (c *Client) fetch(ctx context.Context, query string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, body)
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	res := &Result{
		Heading:     ar.Heading,
		Abstract:    ar.AbstractText,
		AbstractURL: ar.AbstractURL,
		Answer:      ar.Answer,
	}
	res.Related = flattenTopics(ar.RelatedTopics)
	return res, nil
}

func flattenTopics(topics []apiTopic) []Topic {
	var out []Topic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		if t.Text != "" {
			out = append(out, Topic{Text: t.Text, URL: t.FirstURL})
		}
	}
	return out
}

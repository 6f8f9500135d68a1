package genius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"songtldr/pkg/config"
	"songtldr/pkg/lyrics"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	defaultBaseURL        = "https://genius.com"
	defaultAPIBaseURL     = "https://api.genius.com"
	defaultUserAgent      = "Mozilla/5.0 (compatible; songtldr/1.0)"
	defaultRequestTimeout = 20 * time.Second
	searchResultLimit     = 5
	maxResponseBytes      = 8 << 20
)

var (
	lineBreakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// StatusError reports a non-2xx response from Genius.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("genius request %s returned status %d", e.URL, e.StatusCode)
}

// Client searches Genius and scrapes lyrics from song pages.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	apiBaseURL  *url.URL
	accessToken string
	userAgent   string
	sanitizer   *bluemonday.Policy
}

var _ lyrics.Provider = (*Client)(nil)

func New(cfg config.LyricsConfig) (*Client, error) {
	baseURL, err := parseBaseURL(cfg.BaseURL, defaultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("lyrics.base_url: %w", err)
	}
	apiBaseURL, err := parseBaseURL(cfg.APIBaseURL, defaultAPIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("lyrics.api_base_url: %w", err)
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiBaseURL:  apiBaseURL,
		accessToken: strings.TrimSpace(cfg.AccessToken),
		userAgent:   userAgent,
		sanitizer:   bluemonday.StrictPolicy(),
	}, nil
}

// Search returns songs in Genius rank order.
//
// The authenticated API is used when an access token is configured; otherwise
// the public web search endpoint is queried.
func (c *Client) Search(ctx context.Context, query string) ([]lyrics.Song, error) {
	log := clientLogger().With("operation", "search")
	startedAt := time.Now()

	var endpoint *url.URL
	params := url.Values{}
	params.Set("q", query)
	if c.accessToken != "" {
		endpoint = c.apiBaseURL.JoinPath("search")
	} else {
		endpoint = c.baseURL.JoinPath("api", "search", "song")
		params.Set("per_page", strconv.Itoa(searchResultLimit))
	}
	endpoint.RawQuery = params.Encode()

	log.Debug("lyrics request started", "authenticated", c.accessToken != "", "query_length", len(query))
	body, err := c.get(ctx, endpoint.String(), "application/json", c.accessToken != "")
	if err != nil {
		log.Debug("lyrics request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return nil, fmt.Errorf("search songs: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	songs := response.songs()
	log.Debug("lyrics request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "results", len(songs))
	return songs, nil
}

// Lyrics scrapes the song page. Pages without lyrics containers, such as
// instrumentals, yield an empty string.
func (c *Client) Lyrics(ctx context.Context, song lyrics.Song) (string, error) {
	log := clientLogger().With("operation", "lyrics")
	startedAt := time.Now()

	pageURL, err := c.songURL(song)
	if err != nil {
		return "", err
	}

	log.Debug("lyrics request started", "song_id", song.ID, "url", pageURL)
	body, err := c.get(ctx, pageURL, "text/html", false)
	if err != nil {
		log.Debug("lyrics request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("fetch lyrics page: %w", err)
	}

	text, err := c.extractLyrics(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse lyrics page: %w", err)
	}
	log.Debug("lyrics request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "lyrics_length", len(text))

	return text, nil
}

func (c *Client) songURL(song lyrics.Song) (string, error) {
	raw := strings.TrimSpace(song.URL)
	if raw == "" {
		return "", errors.New("song has no page url")
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid song url %q: %w", raw, err)
	}

	return c.baseURL.ResolveReference(ref).String(), nil
}

func (c *Client) get(ctx context.Context, target string, accept string, authenticated bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

// extractLyrics collects the text of every lyrics container on a song page.
func (c *Client) extractLyrics(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var containers []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "div" && attr(node, "data-lyrics-container") == "true" {
			containers = append(containers, node)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	sections := make([]string, 0, len(containers))
	for _, container := range containers {
		removeExcluded(container)

		var markup strings.Builder
		for child := container.FirstChild; child != nil; child = child.NextSibling {
			if err := html.Render(&markup, child); err != nil {
				return "", err
			}
		}

		withBreaks := lineBreakPattern.ReplaceAllString(markup.String(), "\n")
		text := strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(withBreaks)))
		if text != "" {
			sections = append(sections, text)
		}
	}

	return normalizeLyrics(strings.Join(sections, "\n")), nil
}

// removeExcluded drops page chrome (contributor counts, translation menus)
// that Genius nests inside lyrics containers.
func removeExcluded(node *html.Node) {
	for child := node.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.ElementNode && attr(child, "data-exclude-from-selection") == "true" {
			node.RemoveChild(child)
		} else {
			removeExcluded(child)
		}
		child = next
	}
}

func normalizeLyrics(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(blankRunPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func attr(node *html.Node, key string) string {
	for _, attribute := range node.Attr {
		if attribute.Key == key {
			return attribute.Val
		}
	}

	return ""
}

func parseBaseURL(raw string, fallback string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%q must be an absolute url", raw)
	}

	return parsed, nil
}

func clientLogger() *slog.Logger {
	return slog.Default().With("component", "lyrics.genius")
}

type searchResponse struct {
	Response struct {
		Hits     []searchHit `json:"hits"`
		Sections []struct {
			Type string      `json:"type"`
			Hits []searchHit `json:"hits"`
		} `json:"sections"`
	} `json:"response"`
}

type searchHit struct {
	Type   string     `json:"type"`
	Result songResult `json:"result"`
}

type songResult struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	FullTitle     string `json:"full_title"`
	URL           string `json:"url"`
	PrimaryArtist struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
}

// songs flattens both the API (hits) and web (sections) response shapes.
func (r searchResponse) songs() []lyrics.Song {
	hits := r.Response.Hits
	for _, section := range r.Response.Sections {
		if section.Type == "song" {
			hits = append(hits, section.Hits...)
		}
	}

	songs := make([]lyrics.Song, 0, len(hits))
	for _, hit := range hits {
		if hit.Type != "" && hit.Type != "song" {
			continue
		}
		songs = append(songs, lyrics.Song{
			ID:        hit.Result.ID,
			Title:     hit.Result.Title,
			FullTitle: hit.Result.FullTitle,
			Artist:    hit.Result.PrimaryArtist.Name,
			URL:       hit.Result.URL,
		})
	}

	return songs
}

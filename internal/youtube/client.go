// Package youtube fetches the comments of a video through the public
// InnerTube API: it scrapes the watch page for an API key and a comment
// continuation token, then pages through youtubei/v1/next until the
// tokens run out.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"commentwatch/internal/common"
)

const defaultBaseURL = "https://www.youtube.com"

// Comment is one top-level comment on a video.
type Comment struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Published string `json:"published"`
	Likes     int    `json:"likes"`
}

// Cache is an optional read-through cache for fetched comment lists,
// keyed by video id.
type Cache interface {
	GetComments(ctx context.Context, videoID string) ([]Comment, bool)
	StoreComments(ctx context.Context, videoID string, comments []Comment)
}

type Client struct {
	client  *http.Client
	cache   Cache
	baseURL string
}

// NewClient creates a comment client. cache may be nil.
func NewClient(timeout time.Duration, cache Cache) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		cache:   cache,
		baseURL: defaultBaseURL,
	}
}

// FetchComments returns every top-level comment of the video, newest
// first. All failures are retrieval errors.
func (c *Client) FetchComments(ctx context.Context, videoURL string) ([]Comment, error) {
	videoID, err := VideoID(videoURL)
	if err != nil {
		return nil, common.WrapRetrieval("failed to parse video url", err)
	}

	if c.cache != nil {
		if cached, ok := c.cache.GetComments(ctx, videoID); ok {
			slog.Debug("comment cache hit", "video_id", videoID, "comments", len(cached))
			return cached, nil
		}
	}

	apiKey, continuation, err := c.watchPage(ctx, videoID)
	if err != nil {
		return nil, common.WrapRetrieval("failed to load watch page", err)
	}

	var comments []Comment
	firstPage := true
	for continuation != "" {
		body, err := c.next(ctx, apiKey, continuation)
		if err != nil {
			return nil, common.WrapRetrieval("failed to fetch comment page", err)
		}

		if firstPage {
			firstPage = false
			// The first page is sorted "Top comments". Switch to the
			// newest-first ordering when the sort menu offers it.
			if newest := newestFirstToken(body); newest != "" && newest != continuation {
				continuation = newest
				continue
			}
		}

		page, next := parseComments(body)
		comments = append(comments, page...)
		continuation = next
	}

	slog.Info("fetched comments", "video_id", videoID, "comments", len(comments))
	if c.cache != nil {
		c.cache.StoreComments(ctx, videoID, comments)
	}
	return comments, nil
}

// VideoID extracts the video id from a watch or youtu.be URL.
func VideoID(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}
	if strings.Contains(u.Host, "youtu.be") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	}
	if id := u.Query().Get("v"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no video id in url %q", videoURL)
}

var (
	apiKeyPattern       = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	tokenPattern        = regexp.MustCompile(`"token":"([^"]+)"`)
	continuationPattern = regexp.MustCompile(`"continuationItemRenderer":\{"trigger":"CONTINUATION_TRIGGER_ON_ITEM_SHOWN","continuationEndpoint":[^[\]]*?"token":"([^"]+)"`)
)

// watchPage loads the video page and pulls out the InnerTube API key
// and the comment-section continuation token.
func (c *Client) watchPage(ctx context.Context, videoID string) (apiKey, continuation string, err error) {
	pageURL := c.baseURL + "/watch?v=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept-Language", "en-US,en")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	m := apiKeyPattern.FindSubmatch(body)
	if m == nil {
		return "", "", fmt.Errorf("no InnerTube API key on watch page (video private or removed?)")
	}
	apiKey = string(m[1])

	continuation = tokenAfter(body, []byte(`"sectionIdentifier":"comment-item-section"`))
	if continuation == "" {
		// Older page layouts carry the token ahead of the identifier.
		continuation = tokenAfter(body, []byte(`"itemSectionRenderer"`))
	}
	if continuation == "" {
		return "", "", fmt.Errorf("no comment continuation on watch page (comments disabled?)")
	}
	return apiKey, continuation, nil
}

// tokenAfter returns the first continuation token following marker.
func tokenAfter(body, marker []byte) string {
	i := bytes.Index(body, marker)
	if i < 0 {
		return ""
	}
	m := tokenPattern.FindSubmatch(body[i:])
	if m == nil {
		return ""
	}
	return string(m[1])
}

// next posts one continuation to the youtubei/v1/next endpoint and
// returns the raw response body.
func (c *Client) next(ctx context.Context, apiKey, continuation string) ([]byte, error) {
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": "2.20240101.00.00",
				"hl":            "en",
			},
		},
		"continuation": continuation,
	}
	body, _ := json.Marshal(payload)

	endpoint := fmt.Sprintf("%s/youtubei/v1/next?key=%s", c.baseURL, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("next endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

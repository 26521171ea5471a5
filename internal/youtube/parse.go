package youtube

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// nextResponse covers the slices of a youtubei/v1/next response we care
// about: comment payloads arrive as entity mutations, the text of older
// layouts as commentRenderer runs.
type nextResponse struct {
	FrameworkUpdates struct {
		EntityBatchUpdate struct {
			Mutations []struct {
				Payload struct {
					CommentEntityPayload *commentEntity `json:"commentEntityPayload"`
				} `json:"payload"`
			} `json:"mutations"`
		} `json:"entityBatchUpdate"`
	} `json:"frameworkUpdates"`
}

type commentEntity struct {
	Properties struct {
		CommentID string `json:"commentId"`
		Content   struct {
			Content string `json:"content"`
		} `json:"content"`
		PublishedTime string `json:"publishedTime"`
	} `json:"properties"`
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Toolbar struct {
		LikeCountNotliked string `json:"likeCountNotliked"`
	} `json:"toolbar"`
}

// parseComments extracts the top-level comments of one response page
// and the continuation token of the next page, if any.
func parseComments(body []byte) ([]Comment, string) {
	var resp nextResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ""
	}

	var comments []Comment
	for _, m := range resp.FrameworkUpdates.EntityBatchUpdate.Mutations {
		e := m.Payload.CommentEntityPayload
		if e == nil || e.Properties.CommentID == "" {
			continue
		}
		// Replies carry a dotted id (parent.reply); only top-level
		// comments count.
		if strings.Contains(e.Properties.CommentID, ".") {
			continue
		}
		comments = append(comments, Comment{
			ID:        e.Properties.CommentID,
			Author:    e.Author.DisplayName,
			Text:      e.Properties.Content.Content,
			Published: e.Properties.PublishedTime,
			Likes:     parseCount(e.Toolbar.LikeCountNotliked),
		})
	}

	next := ""
	if m := continuationPattern.FindSubmatch(body); m != nil {
		next = string(m[1])
	}
	return comments, next
}

// newestFirstToken finds the continuation of the "Newest first" entry
// in the sort menu of the first comment page. Empty when the menu is
// absent.
func newestFirstToken(body []byte) string {
	i := bytes.Index(body, []byte(`"sortFilterSubMenuRenderer"`))
	if i < 0 {
		return ""
	}
	// The menu lists "Top comments" first and "Newest first" second;
	// the second token is the one we want.
	tokens := tokenPattern.FindAllSubmatch(body[i:], 2)
	if len(tokens) < 2 {
		return ""
	}
	return string(tokens[1][1])
}

// parseCount turns an abbreviated like count ("1.2K", "3M", "47") into
// an integer, rounding down. Unparseable input counts as zero.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1_000
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1_000_000
		s = s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return int(f * mult)
}

// Package match holds the pure comment-matching logic: phrase
// containment checks and timestamp detection with deep-link
// construction. Nothing here touches the network or the store.
package match

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"commentwatch/internal/youtube"
)

var (
	timestampPattern  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?::(\d{2}))?\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// TimestampLink is one detected timestamp reference inside a comment,
// resolved to an absolute offset and a deep link into the video.
type TimestampLink struct {
	Text    string `json:"text"`
	Seconds int    `json:"seconds"`
	Link    string `json:"link"`
}

// Match is a comment that contains every required phrase, together with
// its direct comment link and any timestamp links found in its text.
type Match struct {
	Comment    youtube.Comment `json:"comment"`
	Link       string          `json:"link"`
	Timestamps []TimestampLink `json:"timestamps,omitempty"`
}

// Matches reports whether the comment contains every phrase. The check
// is case-insensitive and whitespace runs are collapsed on both sides.
// An empty phrase set matches every comment.
func Matches(comment string, phrases []string) bool {
	text := normalize(comment)
	for _, p := range phrases {
		if !strings.Contains(text, normalize(p)) {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(s), " ")
}

// Timestamps returns the valid timestamp tokens in text, each with a
// deep link into videoURL. Minutes and seconds fields must be 0-59;
// tokens outside that range are ignored. Identical offsets appearing
// more than once in the same text collapse to a single link.
func Timestamps(text, videoURL string) []TimestampLink {
	base := stripTimeParam(videoURL)
	seen := make(map[int]bool)
	var out []TimestampLink
	for _, m := range timestampPattern.FindAllStringSubmatch(text, -1) {
		seconds, ok := tokenSeconds(m)
		if !ok || seen[seconds] {
			continue
		}
		seen[seconds] = true
		out = append(out, TimestampLink{
			Text:    m[0],
			Seconds: seconds,
			Link:    appendParam(base, "t="+strconv.Itoa(seconds)+"s"),
		})
	}
	return out
}

// tokenSeconds converts the submatch groups (first:second[:third]) into
// total seconds. Two groups read as M:SS, three as H:MM:SS.
func tokenSeconds(m []string) (int, bool) {
	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	if m[3] == "" {
		if first > 59 || second > 59 {
			return 0, false
		}
		return first*60 + second, true
	}
	third, _ := strconv.Atoi(m[3])
	if second > 59 || third > 59 {
		return 0, false
	}
	return first*3600 + second*60 + third, true
}

// CommentLink builds a direct link to a single comment on the video
// page, or returns the video URL unchanged when the comment id is
// unknown.
func CommentLink(videoURL, commentID string) string {
	if commentID == "" {
		return videoURL
	}
	return appendParam(videoURL, "lc="+url.QueryEscape(commentID))
}

// FilterComments applies the phrase check to every comment and attaches
// comment and timestamp links to the ones that match.
func FilterComments(comments []youtube.Comment, phrases []string, videoURL string) []Match {
	var out []Match
	for _, c := range comments {
		if !Matches(c.Text, phrases) {
			continue
		}
		out = append(out, Match{
			Comment:    c,
			Link:       CommentLink(videoURL, c.ID),
			Timestamps: Timestamps(c.Text, videoURL),
		})
	}
	return out
}

// stripTimeParam removes any pre-existing t query parameter so a stale
// offset never survives into a generated deep link.
func stripTimeParam(videoURL string) string {
	u, err := url.Parse(videoURL)
	if err != nil || u.RawQuery == "" {
		return videoURL
	}
	q := u.Query()
	if _, ok := q["t"]; !ok {
		return videoURL
	}
	q.Del("t")
	u.RawQuery = q.Encode()
	return u.String()
}

func appendParam(videoURL, param string) string {
	delimiter := "?"
	if strings.Contains(videoURL, "?") {
		delimiter = "&"
	}
	return videoURL + delimiter + param
}

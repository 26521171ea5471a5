package mail

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"commentwatch/internal/match"
)

// reportTemplate is the HTML body of the result email: every matching
// comment with its author, likes, direct link, and timestamp links.
const reportTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>YouTube Comment Search Results</h2>
  <p>
    Video: <a href="{{.VideoURL}}">{{.VideoURL}}</a><br>
    Phrases: <strong>{{join .Phrases ", "}}</strong><br>
    Matching comments: <strong>{{len .Matches}}</strong>
  </p>
  {{range .Matches}}
  <div style="border: 1px solid #ddd; border-radius: 4px; padding: 12px; margin-bottom: 12px;">
    <p style="margin: 0 0 8px 0;">
      <strong>{{.Comment.Author}}</strong>
      {{if .Comment.Published}}&middot; {{.Comment.Published}}{{end}}
      {{if .Comment.Likes}}&middot; {{.Comment.Likes}} likes{{end}}
    </p>
    <p style="margin: 0 0 8px 0;">{{.Comment.Text}}</p>
    <p style="margin: 0;">
      <a href="{{.Link}}">View comment</a>
      {{range .Timestamps}}
      &middot; <a href="{{.Link}}">{{.Text}}</a>
      {{end}}
    </p>
  </div>
  {{end}}
  <p style="color: #888; font-size: 12px;">Generated on {{.GeneratedOn}}</p>
</body>
</html>`

var report = template.Must(template.New("report").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(reportTemplate))

type reportData struct {
	VideoURL    string
	Phrases     []string
	Matches     []match.Match
	GeneratedOn string
}

// Subject builds the email subject line for a phrase set.
func Subject(phrases []string) string {
	return fmt.Sprintf("YouTube Comment Search Results: %s", strings.Join(phrases, ", "))
}

// RenderReport renders the HTML report for a finished search.
func RenderReport(videoURL string, phrases []string, matches []match.Match, generatedOn time.Time) (string, error) {
	var b strings.Builder
	err := report.Execute(&b, reportData{
		VideoURL:    videoURL,
		Phrases:     phrases,
		Matches:     matches,
		GeneratedOn: generatedOn.Format("January 2, 2006 at 3:04 PM"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return b.String(), nil
}

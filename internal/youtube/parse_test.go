package youtube

import (
	"testing"
)

// A trimmed-down youtubei/v1/next response: two top-level comments, one
// reply, and a continuation for the next page.
const nextPageFixture = `{
  "onResponseReceivedEndpoints": [
    {
      "appendContinuationItemsAction": {
        "continuationItems": [
          {"commentThreadRenderer": {}},
          {"continuationItemRenderer":{"trigger":"CONTINUATION_TRIGGER_ON_ITEM_SHOWN","continuationEndpoint":{"clickTrackingParams":"xx","continuationCommand":{"token":"NEXT_PAGE_TOKEN","request":"CONTINUATION_REQUEST_TYPE_WATCH_NEXT"}}}}
        ]
      }
    }
  ],
  "frameworkUpdates": {
    "entityBatchUpdate": {
      "mutations": [
        {
          "payload": {
            "commentEntityPayload": {
              "properties": {
                "commentId": "UgxAAA",
                "content": {"content": "this is great, check 1:23"},
                "publishedTime": "2 days ago"
              },
              "author": {"displayName": "@ann"},
              "toolbar": {"likeCountNotliked": "1.2K"}
            }
          }
        },
        {
          "payload": {
            "commentEntityPayload": {
              "properties": {
                "commentId": "UgxAAA.reply1",
                "content": {"content": "a reply"},
                "publishedTime": "1 day ago"
              },
              "author": {"displayName": "@bob"},
              "toolbar": {"likeCountNotliked": ""}
            }
          }
        },
        {
          "payload": {
            "commentEntityPayload": {
              "properties": {
                "commentId": "UgxBBB",
                "content": {"content": "unrelated"},
                "publishedTime": "3 days ago"
              },
              "author": {"displayName": "@cee"},
              "toolbar": {"likeCountNotliked": "7"}
            }
          }
        }
      ]
    }
  }
}`

const sortMenuFixture = `{
  "onResponseReceivedEndpoints": [
    {
      "reloadContinuationItemsCommand": {
        "continuationItems": [
          {
            "commentsHeaderRenderer": {
              "sortMenu": {
                "sortFilterSubMenuRenderer": {
                  "subMenuItems": [
                    {"title":"Top comments","serviceEndpoint":{"continuationCommand":{"token":"TOP_TOKEN"}}},
                    {"title":"Newest first","serviceEndpoint":{"continuationCommand":{"token":"NEWEST_TOKEN"}}}
                  ]
                }
              }
            }
          }
        ]
      }
    }
  ]
}`

func TestParseComments(t *testing.T) {
	comments, next := parseComments([]byte(nextPageFixture))

	if len(comments) != 2 {
		t.Fatalf("expected 2 top-level comments, got %d", len(comments))
	}
	first := comments[0]
	if first.ID != "UgxAAA" {
		t.Errorf("unexpected id %q", first.ID)
	}
	if first.Author != "@ann" {
		t.Errorf("unexpected author %q", first.Author)
	}
	if first.Text != "this is great, check 1:23" {
		t.Errorf("unexpected text %q", first.Text)
	}
	if first.Published != "2 days ago" {
		t.Errorf("unexpected published %q", first.Published)
	}
	if first.Likes != 1200 {
		t.Errorf("unexpected likes %d", first.Likes)
	}
	if comments[1].ID != "UgxBBB" {
		t.Errorf("reply leaked into top-level comments: %q", comments[1].ID)
	}

	if next != "NEXT_PAGE_TOKEN" {
		t.Errorf("unexpected continuation %q", next)
	}
}

func TestParseComments_LastPage(t *testing.T) {
	body := `{"frameworkUpdates":{"entityBatchUpdate":{"mutations":[]}}}`
	comments, next := parseComments([]byte(body))
	if len(comments) != 0 {
		t.Fatalf("expected no comments, got %d", len(comments))
	}
	if next != "" {
		t.Fatalf("expected no continuation, got %q", next)
	}
}

func TestNewestFirstToken(t *testing.T) {
	if got := newestFirstToken([]byte(sortMenuFixture)); got != "NEWEST_TOKEN" {
		t.Errorf("expected NEWEST_TOKEN, got %q", got)
	}
	if got := newestFirstToken([]byte(nextPageFixture)); got != "" {
		t.Errorf("expected no token without a sort menu, got %q", got)
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=2ZcedEdh_RI", "2ZcedEdh_RI", false},
		{"https://www.youtube.com/watch?v=X&t=5s", "X", false},
		{"https://youtu.be/2ZcedEdh_RI", "2ZcedEdh_RI", false},
		{"https://www.youtube.com/watch", "", true},
		{"not a url at all ://", "", true},
	}
	for _, tt := range tests {
		got, err := VideoID(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("VideoID(%q): expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("VideoID(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("VideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"7", 7},
		{"1.2K", 1200},
		{"3M", 3000000},
		{"1,024", 1024},
		{"junk", 0},
	}
	for _, tt := range tests {
		if got := parseCount(tt.in); got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

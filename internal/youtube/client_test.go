package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commentwatch/internal/common"
)

const watchPageFixture = `<html><script>
var ytcfg = {"INNERTUBE_API_KEY":"TESTKEY"};
var ytInitialData = {"itemSectionRenderer":{"sectionIdentifier":"comment-item-section","contents":[{"continuationItemRenderer":{"continuationEndpoint":{"continuationCommand":{"token":"FIRST_TOKEN"}}}}]}};
</script></html>`

func newTestServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			w.Write([]byte(watchPageFixture))
		case "/youtubei/v1/next":
			if r.URL.Query().Get("key") != "TESTKEY" {
				http.Error(w, "bad key", http.StatusForbidden)
				return
			}
			var req struct {
				Continuation string `json:"continuation"`
			}
			decodeJSONBody(t, r, &req)
			page, ok := pages[req.Continuation]
			if !ok {
				http.Error(w, "unknown continuation", http.StatusBadRequest)
				return
			}
			w.Write([]byte(page))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchComments(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"FIRST_TOKEN": nextPageFixture,
		"NEXT_PAGE_TOKEN": `{"frameworkUpdates":{"entityBatchUpdate":{"mutations":[
			{"payload":{"commentEntityPayload":{"properties":{"commentId":"UgxCCC","content":{"content":"last page"},"publishedTime":"1 week ago"},"author":{"displayName":"@dee"},"toolbar":{"likeCountNotliked":"2"}}}}
		]}}}`,
	})

	c := NewClient(5*time.Second, nil)
	c.baseURL = srv.URL

	comments, err := c.FetchComments(context.Background(), "https://www.youtube.com/watch?v=X")
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("expected 3 comments across 2 pages, got %d", len(comments))
	}
	if comments[0].ID != "UgxAAA" || comments[2].ID != "UgxCCC" {
		t.Errorf("unexpected comment order: %s .. %s", comments[0].ID, comments[2].ID)
	}
}

func TestFetchComments_UsesCache(t *testing.T) {
	cache := &fakeCache{
		stored: map[string][]Comment{"X": {{ID: "cached", Text: "from cache"}}},
	}
	// No server: a cache hit must not touch the network.
	c := NewClient(5*time.Second, cache)
	c.baseURL = "http://127.0.0.1:0"

	comments, err := c.FetchComments(context.Background(), "https://www.youtube.com/watch?v=X")
	if err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "cached" {
		t.Fatalf("expected the cached list, got %+v", comments)
	}
}

func TestFetchComments_StoresInCache(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"FIRST_TOKEN": `{"frameworkUpdates":{"entityBatchUpdate":{"mutations":[
			{"payload":{"commentEntityPayload":{"properties":{"commentId":"UgxAAA","content":{"content":"hi"},"publishedTime":"now"},"author":{"displayName":"@a"},"toolbar":{"likeCountNotliked":"0"}}}}
		]}}}`,
	})

	cache := &fakeCache{stored: map[string][]Comment{}}
	c := NewClient(5*time.Second, cache)
	c.baseURL = srv.URL

	if _, err := c.FetchComments(context.Background(), "https://www.youtube.com/watch?v=X"); err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if got := cache.stored["X"]; len(got) != 1 || got[0].ID != "UgxAAA" {
		t.Fatalf("expected fetched comments in cache, got %+v", got)
	}
}

func TestFetchComments_NetworkFailureIsRetrievalError(t *testing.T) {
	c := NewClient(500*time.Millisecond, nil)
	c.baseURL = "http://127.0.0.1:0"

	_, err := c.FetchComments(context.Background(), "https://www.youtube.com/watch?v=X")
	if err == nil {
		t.Fatal("expected an error from an unreachable host")
	}
	if !common.IsRetrieval(err) {
		t.Fatalf("expected a retrieval error, got %v", err)
	}
}

func TestFetchComments_BadURLIsRetrievalError(t *testing.T) {
	c := NewClient(time.Second, nil)
	_, err := c.FetchComments(context.Background(), "https://www.youtube.com/watch")
	if !common.IsRetrieval(err) {
		t.Fatalf("expected a retrieval error, got %v", err)
	}
}

type fakeCache struct {
	stored map[string][]Comment
}

func (f *fakeCache) GetComments(_ context.Context, videoID string) ([]Comment, bool) {
	c, ok := f.stored[videoID]
	return c, ok
}

func (f *fakeCache) StoreComments(_ context.Context, videoID string, comments []Comment) {
	f.stored[videoID] = comments
}

func decodeJSONBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
}

package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.Client())
	c.baseURL = srv.URL

	return c
}

// --- Search ---

func TestSearch_SendsFiltersAndDecodes(t *testing.T) {
	var got SearchRequest

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mediaItems:search", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(SearchResponse{
			MediaItems: []MediaItem{{ID: "r1", Filename: "a.jpg"}},
		})
	})

	resp, err := client.Search(context.Background(), SearchRequest{
		PageSize: 100,
		Filters: &SearchFilters{
			FeatureFilter: &FeatureFilter{IncludedFeatures: []string{"FAVORITES"}},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.MediaItems, 1)
	assert.Equal(t, "r1", resp.MediaItems[0].ID)
	require.NotNil(t, got.Filters)
	assert.Equal(t, []string{"FAVORITES"}, got.Filters.FeatureFilter.IncludedFeatures)
}

func TestSearchAll_FollowsPagination(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.PageToken {
		case "":
			json.NewEncoder(w).Encode(SearchResponse{
				MediaItems:    []MediaItem{{ID: "r1"}, {ID: "r2"}},
				NextPageToken: "page-2",
			})
		case "page-2":
			json.NewEncoder(w).Encode(SearchResponse{
				MediaItems: []MediaItem{{ID: "r3"}},
			})
		default:
			t.Fatalf("unexpected page token %q", req.PageToken)
		}
	})

	var ids []string

	err := client.SearchAll(context.Background(), SearchRequest{}, func(item MediaItem) error {
		ids = append(ids, item.ID)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)
}

func TestSearchAll_CallbackErrorStops(t *testing.T) {
	calls := 0

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SearchResponse{
			MediaItems:    []MediaItem{{ID: "r1"}},
			NextPageToken: "more",
		})
	})

	err := client.SearchAll(context.Background(), SearchRequest{}, func(item MediaItem) error {
		calls++
		return fmt.Errorf("stop here")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// --- Albums ---

func TestListAlbums_FollowsPagination(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/albums", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)

		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(AlbumsResponse{
				Albums:        []Album{{ID: "alb1", Title: "Vacation"}},
				NextPageToken: "page-2",
			})
		case "page-2":
			json.NewEncoder(w).Encode(AlbumsResponse{
				Albums: []Album{{ID: "alb2", Title: "Family"}},
			})
		default:
			t.Fatalf("unexpected page token")
		}
	})

	albums, err := client.ListAlbums(context.Background())
	require.NoError(t, err)

	require.Len(t, albums, 2)
	assert.Equal(t, "Vacation", albums[0].Title)
	assert.Equal(t, "Family", albums[1].Title)
}

// --- Download ---

func TestDownload_RequestsOriginalBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/item-bytes=d", r.URL.Path)
		w.Write([]byte("full-resolution"))
	}))
	defer srv.Close()

	client := NewClient(srv.Client())

	content, err := client.Download(context.Background(), MediaItem{
		ID:       "r1",
		Filename: "a.jpg",
		BaseURL:  srv.URL + "/item-bytes",
	})
	require.NoError(t, err)

	assert.Equal(t, "full-resolution", string(content))
}

// --- Upload ---

func TestUpload_TwoStepFlow(t *testing.T) {
	var batchReq BatchCreateRequest

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/uploads":
			assert.Equal(t, "a.jpg", r.Header.Get("X-Goog-Upload-File-Name"))
			assert.Equal(t, "raw", r.Header.Get("X-Goog-Upload-Protocol"))

			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "photo-bytes", string(body))

			w.Write([]byte("upload-token-1"))
		case "/mediaItems:batchCreate":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&batchReq))

			json.NewEncoder(w).Encode(BatchCreateResponse{
				NewMediaItemResults: []MediaItemResult{{
					MediaItem: &MediaItem{ID: "r-new"},
				}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	id, err := client.Upload(context.Background(), "a.jpg", []byte("photo-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "r-new", id)
	require.Len(t, batchReq.NewMediaItems, 1)
	assert.Equal(t, "upload-token-1", batchReq.NewMediaItems[0].SimpleMediaItem.UploadToken)
	assert.Equal(t, "a.jpg", batchReq.NewMediaItems[0].SimpleMediaItem.FileName)
}

func TestUpload_EmptyTokenFails(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Empty 200 body from /uploads.
	})

	_, err := client.Upload(context.Background(), "a.jpg", []byte("photo-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty upload token")
}

func TestUpload_BatchCreateFailureSurfaced(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/uploads":
			w.Write([]byte("upload-token-1"))
		case "/mediaItems:batchCreate":
			json.NewEncoder(w).Encode(BatchCreateResponse{
				NewMediaItemResults: []MediaItemResult{{
					Status: Status{Code: 3, Message: "quota exceeded"},
				}},
			})
		}
	})

	_, err := client.Upload(context.Background(), "a.jpg", []byte("photo-bytes"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

// --- AddToAlbum ---

func TestAddToAlbum_Endpoint(t *testing.T) {
	var got BatchAddRequest

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/albums/alb1:batchAddMediaItems", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte("{}"))
	})

	require.NoError(t, client.AddToAlbum(context.Background(), "alb1", "r1"))
	assert.Equal(t, []string{"r1"}, got.MediaItemIDs)
}

// --- Errors ---

func TestDo_APIErrorEnvelope(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"insufficient scope","status":"PERMISSION_DENIED"}}`))
	})

	_, err := client.Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient scope")
	assert.Contains(t, err.Error(), "403")
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unhappy"))
	})

	_, err := client.Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// --- CreationTime ---

func TestCreationTime_ParsesRFC3339(t *testing.T) {
	item := MediaItem{MediaMetadata: MediaMetadata{CreationTime: "2024-05-01T12:00:00Z"}}

	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), item.CreationTime())
}

func TestCreationTime_ZeroWhenAbsentOrMalformed(t *testing.T) {
	assert.True(t, MediaItem{}.CreationTime().IsZero())

	item := MediaItem{MediaMetadata: MediaMetadata{CreationTime: "yesterday"}}
	assert.True(t, item.CreationTime().IsZero())
}

package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const baseURL = "https://photoslibrary.googleapis.com/v1"

// searchPageSize is the page size for mediaItems:search requests.
const searchPageSize = 100

// albumsPageSize is the page size for album list requests.
const albumsPageSize = 50

// Client talks to the photo library REST API. The http.Client is expected
// to attach authentication (an oauth2 transport from Session).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an API client with the given http.Client.
// If httpClient is nil, http.DefaultClient is used.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// do sends a request, checks the status, and returns the raw body.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API %s (%d): %s", req.URL.Path, resp.StatusCode, apiErr.Error.Message)
		}

		return nil, fmt.Errorf("API %s returned status %d: %s", req.URL.Path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// post sends a JSON POST request and decodes the response into result.
func (c *Client) post(ctx context.Context, endpoint string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}

	return nil
}

// Search runs one page of mediaItems:search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/mediaItems:search", req, &resp); err != nil {
		return nil, fmt.Errorf("searching media items: %w", err)
	}

	return &resp, nil
}

// SearchAll runs mediaItems:search across all pages, invoking fn for each
// item in server order. The request's PageToken is managed internally.
func (c *Client) SearchAll(ctx context.Context, req SearchRequest, fn func(MediaItem) error) error {
	req.PageSize = searchPageSize
	req.PageToken = ""

	for {
		resp, err := c.Search(ctx, req)
		if err != nil {
			return err
		}

		for _, item := range resp.MediaItems {
			if err := fn(item); err != nil {
				return err
			}
		}

		if resp.NextPageToken == "" {
			return nil
		}

		req.PageToken = resp.NextPageToken
	}
}

// ListAlbums returns all albums accessible to the authenticated user,
// following pagination.
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album

	pageToken := ""

	for {
		endpoint := fmt.Sprintf("/albums?pageSize=%d", albumsPageSize)
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		respBody, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("listing albums: %w", err)
		}

		var resp AlbumsResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("decoding album list: %w", err)
		}

		albums = append(albums, resp.Albums...)

		if resp.NextPageToken == "" {
			return albums, nil
		}

		pageToken = resp.NextPageToken
	}
}

// Download fetches the full-resolution bytes of a media item. The "=d"
// suffix requests the original content rather than a preview rendition.
func (c *Client) Download(ctx context.Context, item MediaItem) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.BaseURL+"=d", nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	content, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", item.Filename, err)
	}

	return content, nil
}

// Upload pushes raw bytes and creates the media item, returning its remote
// ID. This is the two-step uploads + batchCreate flow.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-File-Name", filename)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	tokenBytes, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", filename, err)
	}

	uploadToken := string(tokenBytes)
	if uploadToken == "" {
		return "", fmt.Errorf("uploading %s: empty upload token", filename)
	}

	createReq := BatchCreateRequest{
		NewMediaItems: []NewMediaItem{{
			Description: "Uploaded via photosync",
			SimpleMediaItem: SimpleMediaItem{
				FileName:    filename,
				UploadToken: uploadToken,
			},
		}},
	}

	var createResp BatchCreateResponse
	if err := c.post(ctx, "/mediaItems:batchCreate", createReq, &createResp); err != nil {
		return "", fmt.Errorf("creating media item for %s: %w", filename, err)
	}

	if len(createResp.NewMediaItemResults) == 0 {
		return "", fmt.Errorf("creating media item for %s: no results returned", filename)
	}

	result := createResp.NewMediaItemResults[0]
	if result.Status.Code != 0 || result.MediaItem == nil {
		return "", fmt.Errorf("creating media item for %s: %s", filename, result.Status.Message)
	}

	return result.MediaItem.ID, nil
}

// AddToAlbum adds a media item to an album.
func (c *Client) AddToAlbum(ctx context.Context, albumID, mediaID string) error {
	endpoint := fmt.Sprintf("/albums/%s:batchAddMediaItems", url.PathEscape(albumID))

	if err := c.post(ctx, endpoint, BatchAddRequest{MediaItemIDs: []string{mediaID}}, nil); err != nil {
		return fmt.Errorf("adding %s to album %s: %w", mediaID, albumID, err)
	}

	return nil
}

// CreationTime parses the item's remote creation timestamp. Returns the
// zero time when absent or malformed.
func (m MediaItem) CreationTime() time.Time {
	if m.MediaMetadata.CreationTime == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, m.MediaMetadata.CreationTime)
	if err != nil {
		return time.Time{}
	}

	return t
}

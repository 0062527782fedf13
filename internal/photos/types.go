package photos

// MediaMetadata carries the remote item's capture metadata.
type MediaMetadata struct {
	CreationTime string `json:"creationTime"`
	Width        string `json:"width,omitempty"`
	Height       string `json:"height,omitempty"`
}

// MediaItem is a single photo or video in the remote library.
type MediaItem struct {
	ID            string        `json:"id"`
	Filename      string        `json:"filename"`
	BaseURL       string        `json:"baseUrl"`
	MimeType      string        `json:"mimeType,omitempty"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

// Album is a named remote collection.
type Album struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Date is a calendar date in a search date range.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// DateRange bounds a window selection.
type DateRange struct {
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
}

// DateFilter restricts a search to creation-time ranges.
type DateFilter struct {
	Ranges []DateRange `json:"ranges"`
}

// FeatureFilter restricts a search to tagged features (e.g. FAVORITES).
type FeatureFilter struct {
	IncludedFeatures []string `json:"includedFeatures"`
}

// SearchFilters is the filter block of a mediaItems:search request.
type SearchFilters struct {
	DateFilter    *DateFilter    `json:"dateFilter,omitempty"`
	FeatureFilter *FeatureFilter `json:"featureFilter,omitempty"`
}

// SearchRequest is the payload for POST /v1/mediaItems:search.
type SearchRequest struct {
	AlbumID   string         `json:"albumId,omitempty"`
	PageSize  int            `json:"pageSize"`
	PageToken string         `json:"pageToken,omitempty"`
	Filters   *SearchFilters `json:"filters,omitempty"`
}

// SearchResponse is returned from POST /v1/mediaItems:search.
type SearchResponse struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// AlbumsResponse is returned from GET /v1/albums.
type AlbumsResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// NewMediaItem wraps an upload token for mediaItems:batchCreate.
type NewMediaItem struct {
	Description     string          `json:"description,omitempty"`
	SimpleMediaItem SimpleMediaItem `json:"simpleMediaItem"`
}

// SimpleMediaItem carries the raw-bytes upload token.
type SimpleMediaItem struct {
	FileName    string `json:"fileName,omitempty"`
	UploadToken string `json:"uploadToken"`
}

// BatchCreateRequest is the payload for POST /v1/mediaItems:batchCreate.
type BatchCreateRequest struct {
	NewMediaItems []NewMediaItem `json:"newMediaItems"`
}

// MediaItemResult is one outcome in a batchCreate response.
type MediaItemResult struct {
	Status    Status     `json:"status"`
	MediaItem *MediaItem `json:"mediaItem"`
}

// Status is the RPC status attached to a batchCreate result.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BatchCreateResponse is returned from POST /v1/mediaItems:batchCreate.
type BatchCreateResponse struct {
	NewMediaItemResults []MediaItemResult `json:"newMediaItemResults"`
}

// BatchAddRequest is the payload for POST /v1/albums/{id}:batchAddMediaItems.
type BatchAddRequest struct {
	MediaItemIDs []string `json:"mediaItemIds"`
}

// APIError is the error envelope the API returns on failures.
type APIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

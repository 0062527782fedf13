package photos

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/scwhite/photosync/internal/errors"
)

// RemoteItem is a selected media item together with the album titles it
// was selected through. Read-only to the reconciler.
type RemoteItem struct {
	MediaItem

	// Albums holds the configured album titles this item is a member of,
	// in selection order. Empty for window/favorites-only items.
	Albums []string
}

// Selection is the config slice the selector acts on.
type Selection struct {
	// Days is the trailing window for the recent-items query.
	Days int

	// Albums are the album titles to select, in configured order.
	Albums []string

	// IncludeFavorites enables the favorites query.
	IncludeFavorites bool
}

// Selector composes window, album and favorites queries against the remote
// library, suppressing duplicates across sources.
type Selector struct {
	client *Client
	logger *slog.Logger

	// albumIDs caches resolved title -> ID mappings across queries. The
	// reconciler uses them to add uploaded files to their album.
	albumIDs map[string]string

	// albums caches the full album list so syncing several albums costs
	// one listing.
	albums []Album

	// now is swappable in tests.
	now func() time.Time
}

// NewSelector creates a selector over the given API client.
func NewSelector(client *Client, logger *slog.Logger) *Selector {
	return &Selector{
		client:   client,
		logger:   logger,
		albumIDs: make(map[string]string),
		now:      time.Now,
	}
}

// AlbumIDs returns the album title -> ID mappings resolved so far.
func (s *Selector) AlbumIDs() map[string]string {
	return s.albumIDs
}

// ByWindow returns items created within the trailing number of days,
// newest first, deduplicated by ID.
func (s *Selector) ByWindow(ctx context.Context, days int) ([]MediaItem, error) {
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	req := SearchRequest{
		Filters: &SearchFilters{
			DateFilter: &DateFilter{
				Ranges: []DateRange{{
					StartDate: Date{Year: start.Year(), Month: int(start.Month()), Day: start.Day()},
					EndDate:   Date{Year: end.Year(), Month: int(end.Month()), Day: end.Day()},
				}},
			},
		},
	}

	return s.collect(ctx, req)
}

// ByAlbum resolves an album title to its ID and returns the album's
// members. Returns errors.ErrAlbumNotFound when no exact case-sensitive
// title match exists.
func (s *Selector) ByAlbum(ctx context.Context, title string) ([]MediaItem, error) {
	if s.albums == nil {
		albums, err := s.client.ListAlbums(ctx)
		if err != nil {
			return nil, err
		}

		s.albums = append([]Album{}, albums...)
	}

	albumID := ""
	for _, album := range s.albums {
		if album.Title == title {
			albumID = album.ID
			break
		}
	}

	if albumID == "" {
		return nil, fmt.Errorf("%w: %q", errors.ErrAlbumNotFound, title)
	}

	s.albumIDs[title] = albumID

	return s.collect(ctx, SearchRequest{AlbumID: albumID})
}

// Favorites returns the items tagged as favorites.
func (s *Selector) Favorites(ctx context.Context) ([]MediaItem, error) {
	req := SearchRequest{
		Filters: &SearchFilters{
			FeatureFilter: &FeatureFilter{IncludedFeatures: []string{"FAVORITES"}},
		},
	}

	return s.collect(ctx, req)
}

// Select runs every enabled selection and unions the results by ID. The
// first source to produce an item determines its position; album
// membership is merged across sources so an item in two configured albums
// carries both titles. A missing album is skipped with a warning, not
// fatal to the run.
func (s *Selector) Select(ctx context.Context, sel Selection) ([]RemoteItem, error) {
	seen := mapset.NewSet[string]()

	var items []RemoteItem

	index := make(map[string]int)

	add := func(item MediaItem, album string) {
		if seen.Add(item.ID) {
			index[item.ID] = len(items)
			items = append(items, RemoteItem{MediaItem: item})
		}

		if album != "" {
			ri := &items[index[item.ID]]
			for _, a := range ri.Albums {
				if a == album {
					return
				}
			}

			ri.Albums = append(ri.Albums, album)
		}
	}

	if sel.IncludeFavorites {
		s.logger.Info("selecting favorites")

		favorites, err := s.Favorites(ctx)
		if err != nil {
			return nil, fmt.Errorf("selecting favorites: %w", err)
		}

		for _, item := range favorites {
			add(item, "")
		}
	}

	s.logger.Info("selecting recent items", slog.Int("days", sel.Days))

	recent, err := s.ByWindow(ctx, sel.Days)
	if err != nil {
		return nil, fmt.Errorf("selecting recent items: %w", err)
	}

	for _, item := range recent {
		add(item, "")
	}

	for _, title := range sel.Albums {
		s.logger.Info("selecting album", slog.String("album", title))

		members, err := s.ByAlbum(ctx, title)
		if err != nil {
			if stderrors.Is(err, errors.ErrAlbumNotFound) {
				s.logger.Warn("album not found, skipping", slog.String("album", title))
				continue
			}

			return nil, fmt.Errorf("selecting album %q: %w", title, err)
		}

		for _, item := range members {
			add(item, title)
		}
	}

	s.logger.Info("remote selection complete", slog.Int("items", len(items)))

	return items, nil
}

// collect drains a paginated search, deduplicating by ID within the query.
func (s *Selector) collect(ctx context.Context, req SearchRequest) ([]MediaItem, error) {
	seen := mapset.NewSet[string]()

	var items []MediaItem

	err := s.client.SearchAll(ctx, req, func(item MediaItem) error {
		if seen.Add(item.ID) {
			items = append(items, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

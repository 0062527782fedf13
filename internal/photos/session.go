package photos

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/scwhite/photosync/internal/ledger"
)

// photosScope is the read/write scope for the photo library API.
const photosScope = "https://www.googleapis.com/auth/photoslibrary"

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// SessionConfig carries the OAuth inputs. The refresh token is obtained
// out of band (interactive consent flow is not part of this tool).
type SessionConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewSessionClient builds an authenticated *http.Client whose transport
// refreshes the access token as needed. The current access token (with its
// expiry) is cached in the ledger between runs so a fresh run can often
// skip the refresh round trip.
func NewSessionClient(ctx context.Context, cfg SessionConfig, led *ledger.Ledger, logger *slog.Logger) *http.Client {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     googleEndpoint,
		Scopes:       []string{photosScope},
	}

	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}

	if cached := led.Token(); cached != "" {
		var t oauth2.Token
		if err := json.Unmarshal([]byte(cached), &t); err == nil && t.Valid() {
			logger.Debug("using cached access token")
			token.AccessToken = t.AccessToken
			token.Expiry = t.Expiry
		}
	}

	source := oc.TokenSource(ctx, token)

	return oauth2.NewClient(ctx, &cachingTokenSource{
		inner:  source,
		ledger: led,
		logger: logger,
	})
}

// cachingTokenSource persists refreshed access tokens to the ledger.
type cachingTokenSource struct {
	inner  oauth2.TokenSource
	ledger *ledger.Ledger
	logger *slog.Logger
	last   string
}

func (s *cachingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.inner.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != s.last {
		s.last = token.AccessToken

		data, err := json.Marshal(token)
		if err == nil {
			err = s.ledger.SetToken(string(data))
		}

		if err != nil {
			s.logger.Warn("failed to cache access token", slog.String("error", err.Error()))
		}
	}

	return token, nil
}

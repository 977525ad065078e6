package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

// Tokens is a provider token pair plus the access token's expiry.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenEndpoint abstracts the provider's OAuth token endpoint.
type TokenEndpoint interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

type googleTokenEndpoint struct {
	conf *oauth2.Config
}

func NewGoogleTokenEndpoint(clientID, clientSecret, redirectURL string) TokenEndpoint {
	return &googleTokenEndpoint{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

func (g *googleTokenEndpoint) AuthURL(state string) string {
	// access_type=offline + prompt=consent so Google returns a refresh token.
	return g.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (g *googleTokenEndpoint) Exchange(ctx context.Context, code string) (Tokens, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Tokens{}, fmt.Errorf("exchange code: %w", err)
	}
	return fromOAuth2Token(tok), nil
}

func (g *googleTokenEndpoint) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	ts := g.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		if isInvalidGrant(err) {
			return Tokens{}, ErrReauthorizationRequired
		}
		return Tokens{}, fmt.Errorf("refresh token: %w", err)
	}

	out := fromOAuth2Token(tok)
	if out.RefreshToken == "" {
		// Google omits the refresh token when it is unchanged.
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func fromOAuth2Token(tok *oauth2.Token) Tokens {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiry,
	}
}

// isInvalidGrant detects a revoked or expired refresh token, which the
// provider reports as the invalid_grant error code.
func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.ErrorCode == "invalid_grant"
	}
	return false
}

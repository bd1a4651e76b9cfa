package powerbi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// Public client registered for Power BI desktop tooling.
	DefaultClientID = "23d8f6bd-1eb0-4cc2-a08c-7bf525c67bcd"
	DefaultTenant   = "common"
	APIScope        = "https://analysis.windows.net/powerbi/api/.default"
)

var ErrNoToken = errors.New("no access token")

type AuthConfig struct {
	Token    string // pre-acquired bearer token; skips the device flow
	Tenant   string
	ClientID string

	// AuthURL, TokenURL and DeviceAuthURL override the Entra ID endpoints.
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string

	// Prompt shows the device-code instructions to the user.
	Prompt func(verificationURI, userCode string)
}

func (a AuthConfig) oauth2Config() *oauth2.Config {
	tenant := a.Tenant
	if tenant == "" {
		tenant = DefaultTenant
	}
	clientID := a.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	endpoint := microsoft.AzureADEndpoint(tenant)
	endpoint.DeviceAuthURL = "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0/devicecode"
	if a.AuthURL != "" {
		endpoint.AuthURL = a.AuthURL
	}
	if a.TokenURL != "" {
		endpoint.TokenURL = a.TokenURL
	}
	if a.DeviceAuthURL != "" {
		endpoint.DeviceAuthURL = a.DeviceAuthURL
	}

	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: endpoint,
		Scopes:   []string{APIScope, "openid", "profile", "offline_access"},
	}
}

// TokenSource returns a static source for a configured token, or runs the
// device-code flow against Entra ID and returns a refreshing source.
func TokenSource(ctx context.Context, cfg AuthConfig) (oauth2.TokenSource, error) {
	if tok := strings.TrimSpace(strings.TrimPrefix(cfg.Token, "Bearer ")); tok != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}), nil
	}

	oc := cfg.oauth2Config()
	da, err := oc.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("start device login: %w", err)
	}
	if cfg.Prompt != nil {
		cfg.Prompt(da.VerificationURI, da.UserCode)
	}

	tok, err := oc.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("complete device login: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return oc.TokenSource(ctx, tok), nil
}

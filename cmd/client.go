package cmd

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"pb-analyzer/internal/powerbi"
)

// newPowerBIClient builds the service client. Anonymous clients serve the
// public embed endpoints; authenticated ones sign in with the configured
// token or the device-code flow.
func newPowerBIClient(ctx context.Context, cfg PowerBIConfig, authenticated bool) (*powerbi.Client, error) {
	var ts oauth2.TokenSource
	if authenticated {
		var err error
		ts, err = powerbi.TokenSource(ctx, powerbi.AuthConfig{
			Token:    cfg.Token,
			Tenant:   cfg.Tenant,
			ClientID: cfg.ClientID,
			Prompt: func(uri, code string) {
				fmt.Printf("🔐 To sign in, open %s and enter the code %s\n", uri, code)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("power bi sign-in failed: %w", err)
		}
	}

	return powerbi.NewClient(ts,
		powerbi.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		powerbi.WithAPIBase(cfg.APIBase),
		powerbi.WithLogger(logger),
	), nil
}

package powerbi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrNoClusterURI = errors.New("embed page does not name a cluster")
	ErrNoModel      = errors.New("public report exposes no model")

	clusterURIPattern = regexp.MustCompile(`var resolvedClusterUri = '(.*?)';`)
)

// EmbedKey is the payload of a publish-to-web URL's "r" parameter.
type EmbedKey struct {
	ResourceKey string `json:"k"`
	TenantID    string `json:"t"`
	Cluster     int    `json:"c"`
}

// DecodeEmbedURL reads the resource key out of a publish-to-web URL such as
// https://app.powerbi.com/view?r=eyJrIjoi...
func DecodeEmbedURL(embedURL string) (EmbedKey, error) {
	u, err := url.Parse(strings.TrimSpace(embedURL))
	if err != nil {
		return EmbedKey{}, fmt.Errorf("parse embed url: %w", err)
	}
	// "+" of standard base64 arrives as a space once the query is decoded.
	r := strings.ReplaceAll(u.Query().Get("r"), " ", "+")
	if r == "" {
		return EmbedKey{}, fmt.Errorf("embed url %q has no r parameter", embedURL)
	}

	var raw []byte
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if raw, err = enc.DecodeString(r); err == nil {
			break
		}
	}
	if err != nil {
		return EmbedKey{}, fmt.Errorf("decode embed url r parameter: %w", err)
	}

	var key EmbedKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return EmbedKey{}, fmt.Errorf("decode embed key: %w", err)
	}
	if key.ResourceKey == "" {
		return EmbedKey{}, fmt.Errorf("embed key of %q has no resource key", embedURL)
	}
	return key, nil
}

// ResolveCluster loads the embed page and returns the API cluster base URL
// it redirects to, with a trailing slash.
func (c *Client) ResolveCluster(ctx context.Context, embedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, embedURL, nil)
	if err != nil {
		return "", fmt.Errorf("build embed page request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("load embed page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Method: http.MethodGet, URL: embedURL, StatusCode: resp.StatusCode}
	}

	page, err := readLimited(resp, 4<<20)
	if err != nil {
		return "", fmt.Errorf("read embed page: %w", err)
	}
	m := clusterURIPattern.FindSubmatch(page)
	if m == nil {
		return "", ErrNoClusterURI
	}
	cluster := strings.Replace(string(m[1]), "redirect", "api", 1)
	if !strings.HasSuffix(cluster, "/") {
		cluster += "/"
	}
	return cluster, nil
}

type modelsAndExploration struct {
	Models []struct {
		ID json.RawMessage `json:"id"`
	} `json:"models"`
}

// PublicDefinition fetches the definition of a report published to the web.
// No credentials are needed, only the resource key from the embed URL.
func (c *Client) PublicDefinition(ctx context.Context, embedURL string) (*Definition, error) {
	key, err := DecodeEmbedURL(embedURL)
	if err != nil {
		return nil, err
	}
	cluster, err := c.ResolveCluster(ctx, embedURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{"X-PowerBI-ResourceKey": []string{key.ResourceKey}}

	var models modelsAndExploration
	exploration, err := c.getJSON(ctx,
		fmt.Sprintf("%spublic/reports/%s/modelsAndExploration?preferReadOnlySession=true", cluster, url.PathEscape(key.ResourceKey)),
		header, &models)
	if err != nil {
		return nil, fmt.Errorf("public exploration: %w", err)
	}
	if len(models.Models) == 0 || len(models.Models[0].ID) == 0 {
		return nil, ErrNoModel
	}
	modelID := models.Models[0].ID

	schema, err := c.postJSON(ctx, cluster+"public/reports/conceptualschema", header,
		conceptualSchemaRequest{ModelIDs: []json.RawMessage{modelID}}, nil)
	if err != nil {
		return nil, fmt.Errorf("public conceptual schema: %w", err)
	}

	return &Definition{
		ReportID:    key.ResourceKey,
		ModelID:     rawID(modelID),
		Schema:      schema,
		Exploration: exploration,
	}, nil
}

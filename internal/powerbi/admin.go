package powerbi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	sharedToOrgPath    = "/v1.0/myorg/admin/widelySharedArtifacts/linksSharedToWholeOrganization"
	publishedToWebPath = "/v1.0/myorg/admin/widelySharedArtifacts/publishedToWeb"

	unknownReport = "Unknown Report"
	unknownSharer = "Unknown Sharer"
)

// Artifact is one widely shared report as listed by the admin API.
type Artifact struct {
	ID             string
	Name           string
	SharedBy       string
	PublishedToWeb bool
}

type artifactPage struct {
	Context           string `json:"@odata.context"`
	ContinuationURI   string `json:"continuationUri"`
	ContinuationToken string `json:"continuationToken"`
	Entities          []struct {
		ArtifactID   string `json:"artifactId"`
		DisplayName  string `json:"displayName"`
		ArtifactType string `json:"artifactType"`
		Sharer       struct {
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"sharer"`
	} `json:"ArtifactAccessEntities"`
}

// SharedReports lists reports shared with the whole organization, flags
// those also published to the web, and returns the cluster base URL the
// exploration endpoints must be called on.
func (c *Client) SharedReports(ctx context.Context) (string, []Artifact, error) {
	shared, region, err := c.listArtifacts(ctx, sharedToOrgPath)
	if err != nil {
		return "", nil, fmt.Errorf("list reports shared to organization: %w", err)
	}
	if region == "" {
		return "", nil, fmt.Errorf("list reports shared to organization: response carries no @odata.context")
	}

	published, _, err := c.listArtifacts(ctx, publishedToWebPath)
	if err != nil {
		return "", nil, fmt.Errorf("list reports published to web: %w", err)
	}
	onWeb := make(map[string]bool, len(published))
	for _, a := range published {
		onWeb[a.ID] = true
	}
	for i := range shared {
		shared[i].PublishedToWeb = onWeb[shared[i].ID]
	}
	return region, shared, nil
}

func (c *Client) listArtifacts(ctx context.Context, path string) ([]Artifact, string, error) {
	var (
		out    []Artifact
		region string
		seen   = make(map[string]bool)
		pages  = make(map[string]bool)
	)
	next := c.apiBase + path
	for next != "" && !pages[next] {
		pages[next] = true
		var page artifactPage
		if _, err := c.getJSON(ctx, next, nil, &page); err != nil {
			return nil, "", err
		}
		if region == "" && page.Context != "" {
			region = regionFromContext(page.Context)
		}
		for _, e := range page.Entities {
			if e.ArtifactID == "" || seen[e.ArtifactID] {
				continue
			}
			if e.ArtifactType != "" && !strings.EqualFold(e.ArtifactType, "Report") {
				continue
			}
			seen[e.ArtifactID] = true
			a := Artifact{ID: e.ArtifactID, Name: e.DisplayName, SharedBy: e.Sharer.DisplayName}
			if a.Name == "" {
				a.Name = unknownReport
			}
			if a.SharedBy == "" {
				a.SharedBy = unknownSharer
			}
			out = append(out, a)
		}

		switch {
		case page.ContinuationURI != "":
			next = page.ContinuationURI
		case page.ContinuationToken != "":
			next = c.apiBase + path + "?continuationToken=" + url.QueryEscape("'"+page.ContinuationToken+"'")
		default:
			next = ""
		}
	}
	return out, region, nil
}

// regionFromContext turns the admin API's @odata.context URL into the base
// URL of the tenant's cluster.
func regionFromContext(odataContext string) string {
	u, err := url.Parse(odataContext)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

package powerbi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// datasetEntityType marks the semantic model among a report's related
// entity keys.
const datasetEntityType = 4

// Definition is the raw pair of documents a report is analyzed from.
type Definition struct {
	ReportID    string
	ModelID     string
	Schema      []byte
	Exploration []byte
}

type pushAccessResponse struct {
	EntityKey struct {
		ID string `json:"id"`
	} `json:"entityKey"`
	RelatedEntityKeys []struct {
		ID   json.RawMessage `json:"id"`
		Type int             `json:"type"`
	} `json:"relatedEntityKeys"`
}

type conceptualSchemaRequest struct {
	ModelIDs            []json.RawMessage `json:"modelIds"`
	UserPreferredLocale string            `json:"userPreferredLocale,omitempty"`
}

// ReportDefinition fetches the conceptual schema and the exploration of an
// organizational report from the cluster at region.
func (c *Client) ReportDefinition(ctx context.Context, region, reportID string) (*Definition, error) {
	region = strings.TrimRight(region, "/")

	// --- Step 1: pushaccess resolves the artifact and its model ---
	var access pushAccessResponse
	pushURL := fmt.Sprintf("%s/metadata/access/reports/%s/pushaccess?forceRefreshGroups=true", region, url.PathEscape(reportID))
	if _, err := c.postJSON(ctx, pushURL, nil, nil, &access); err != nil {
		return nil, fmt.Errorf("push access for report %s: %w", reportID, err)
	}
	artifactID := access.EntityKey.ID
	if artifactID == "" {
		artifactID = reportID
	}
	var modelID json.RawMessage
	for _, k := range access.RelatedEntityKeys {
		if k.Type == datasetEntityType {
			modelID = k.ID
			break
		}
	}
	if len(modelID) == 0 {
		return nil, fmt.Errorf("push access for report %s: no related model", reportID)
	}

	// --- Step 2: conceptual schema of the model ---
	schema, err := c.postJSON(ctx, region+"/explore/conceptualschema", nil, conceptualSchemaRequest{
		ModelIDs:            []json.RawMessage{modelID},
		UserPreferredLocale: "en-US",
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("conceptual schema for report %s: %w", reportID, err)
	}

	// --- Step 3: exploration (the visual layout) ---
	exploration, err := c.getJSON(ctx, fmt.Sprintf("%s/explore/reports/%s/exploration", region, url.PathEscape(artifactID)), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("exploration for report %s: %w", reportID, err)
	}

	return &Definition{
		ReportID:    reportID,
		ModelID:     rawID(modelID),
		Schema:      schema,
		Exploration: exploration,
	}, nil
}

// rawID renders a JSON id, numeric or string, as plain text.
func rawID(id json.RawMessage) string {
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

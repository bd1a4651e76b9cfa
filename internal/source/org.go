package source

import (
	"context"
	"fmt"
	"sync"

	"pb-analyzer/internal/powerbi"
)

// Org lists the reports shared with the whole organization through the
// admin API and fetches them from the tenant's cluster.
type Org struct {
	client    *powerbi.Client
	onlyOnWeb bool

	mu     sync.Mutex
	region string
}

func NewOrg(client *powerbi.Client, publishedToWebOnly bool) *Org {
	return &Org{client: client, onlyOnWeb: publishedToWebOnly}
}

func (o *Org) Kind() string { return "org" }

func (o *Org) List(ctx context.Context) ([]Item, error) {
	region, artifacts, err := o.client.SharedReports(ctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.region = region
	o.mu.Unlock()

	items := make([]Item, 0, len(artifacts))
	for _, a := range artifacts {
		if o.onlyOnWeb && !a.PublishedToWeb {
			continue
		}
		items = append(items, Item{ID: a.ID, Name: a.Name, SharedBy: a.SharedBy, PublishedToWeb: a.PublishedToWeb})
	}
	return items, nil
}

func (o *Org) Fetch(ctx context.Context, item Item) (*powerbi.Definition, error) {
	o.mu.Lock()
	region := o.region
	o.mu.Unlock()
	if region == "" {
		return nil, fmt.Errorf("fetch report %s: cluster unknown, List must run first", item.ID)
	}
	return o.client.ReportDefinition(ctx, region, item.ID)
}

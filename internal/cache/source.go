package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"

	"pb-analyzer/internal/powerbi"
	"pb-analyzer/internal/source"
)

const (
	keyPrefix  = "pba:def:"
	DefaultTTL = 24 * time.Hour
)

// Key derives the cache key of one report of a source.
func Key(kind, id string) string {
	sum := blake3.Sum256([]byte(kind + "\x00" + id))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

type entry struct {
	ReportID    string `json:"report_id"`
	ModelID     string `json:"model_id"`
	Schema      []byte `json:"schema"`
	Exploration []byte `json:"exploration"`
}

// Source serves Fetch from the store when it can and fills the store
// otherwise. Cache errors are logged and never fail a fetch.
type Source struct {
	source.Source
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func Wrap(src source.Source, store Store, ttl time.Duration, logger *slog.Logger) *Source {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{Source: src, store: store, ttl: ttl, logger: logger}
}

func (s *Source) Fetch(ctx context.Context, item source.Item) (*powerbi.Definition, error) {
	key := Key(s.Kind(), item.ID)

	data, ok, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("definition cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case ok:
		var e entry
		if err := json.Unmarshal(data, &e); err == nil {
			s.logger.Debug("definition cache hit", slog.String("report_id", item.ID))
			return &powerbi.Definition{ReportID: e.ReportID, ModelID: e.ModelID, Schema: e.Schema, Exploration: e.Exploration}, nil
		}
	}

	def, err := s.Source.Fetch(ctx, item)
	if err != nil {
		return nil, err
	}

	data, err = json.Marshal(entry{ReportID: def.ReportID, ModelID: def.ModelID, Schema: def.Schema, Exploration: def.Exploration})
	if err == nil {
		err = s.store.Set(ctx, key, data, s.ttl)
	}
	if err != nil {
		s.logger.Warn("definition cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return def, nil
}

package engine

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"pb-analyzer/internal/analysis"
)

// digest identifies a definition by content. The same public report is
// often embedded on several pages, so embed exports repeat definitions.
func digest(schema, exploration []byte) string {
	h := blake3.New()
	_, _ = h.Write(schema)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(exploration)
	return hex.EncodeToString(h.Sum(nil))
}

type deduper struct {
	group singleflight.Group

	mu   sync.Mutex
	done map[string]*analysis.Result
}

func newDeduper() *deduper {
	return &deduper{done: make(map[string]*analysis.Result)}
}

// analyze runs fn once per key. shared is true when the result was computed
// for another caller.
func (d *deduper) analyze(key string, fn func() (*analysis.Result, error)) (*analysis.Result, bool, error) {
	owner := false
	v, err, _ := d.group.Do(key, func() (any, error) {
		d.mu.Lock()
		res, ok := d.done[key]
		d.mu.Unlock()
		if ok {
			return res, nil
		}

		owner = true
		res, err := fn()
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.done[key] = res
		d.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return nil, !owner, err
	}
	return v.(*analysis.Result), !owner, nil
}

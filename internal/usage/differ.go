package usage

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"pb-analyzer/internal/resolve"
	"pb-analyzer/internal/schema"
)

// UsedSet holds the catalog indexes of columns that some reference reached.
type UsedSet struct {
	bm *roaring.Bitmap
}

func NewUsedSet() *UsedSet {
	return &UsedSet{bm: roaring.New()}
}

// Add marks the columns of a resolution as used. Resolved and Ambiguous
// references both count; unresolved ones and measures mark nothing.
func (s *UsedSet) Add(res resolve.Resolution) {
	if res.Status == resolve.Unresolved {
		return
	}
	for _, i := range res.Columns {
		s.bm.Add(uint32(i))
	}
}

// AddAll drains a resolution stream into the set.
func (s *UsedSet) AddAll(seq iter.Seq[resolve.Resolution]) {
	for res := range seq {
		s.Add(res)
	}
}

func (s *UsedSet) Contains(i int) bool {
	return s.bm.Contains(uint32(i))
}

func (s *UsedSet) Len() int {
	return int(s.bm.GetCardinality())
}

// Usage is the partition of a catalog's columns into used and unused.
type Usage struct {
	All         []*schema.Column
	Used        []*schema.Column
	Unused      []*schema.Column
	HiddenCount int
}

// Diff computes unused = all - used over the catalog's column order.
// The hidden count depends only on the catalog, never on usage.
func Diff(c *schema.Catalog, used *UsedSet) Usage {
	cols := c.Columns()

	all := roaring.New()
	all.AddRange(0, uint64(len(cols)))
	unused := roaring.AndNot(all, used.bm)

	u := Usage{All: cols}
	it := unused.Iterator()
	for it.HasNext() {
		u.Unused = append(u.Unused, cols[it.Next()])
	}

	usedInCatalog := roaring.And(all, used.bm)
	it = usedInCatalog.Iterator()
	for it.HasNext() {
		u.Used = append(u.Used, cols[it.Next()])
	}

	for _, col := range cols {
		if col.IsHidden {
			u.HiddenCount++
		}
	}
	return u
}

// Keys renders columns in "Table.Column" form, keeping their order.
func Keys(cols []*schema.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Key()
	}
	return out
}

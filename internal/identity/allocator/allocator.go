// Package allocator derives identity identifiers from a sub-category and the
// number of identities already stored in it.
//
// Allocation is pure. Uniqueness under concurrency comes from the caller:
// count, allocate and insert run under a per-sub-category lock, and the store
// rejects a duplicate id so the caller can recount and retry.
package allocator

import (
	"fmt"
	"strconv"
	"time"

	"campusid/internal/identity/models"
)

// FallbackPrefix is used for sub-categories missing from the catalog.
const FallbackPrefix = "TMP"

// Allocation is an allocated identifier.
type Allocation struct {
	ID       string
	Sequence int64
	// OverRange is set when Sequence is past the sub-category's nominal end.
	// The range is a soft limit; the id is still valid and unique.
	OverRange bool
	// Fallback is set when the sub-category is not in the catalog.
	Fallback bool
}

// Allocator maps sub-categories to identifiers.
type Allocator struct {
	catalog *models.Catalog
}

// New creates an allocator over catalog.
func New(catalog *models.Catalog) *Allocator {
	return &Allocator{catalog: catalog}
}

// Allocate returns the identifier of the next identity in sub, given count
// identities already stored there. Known sub-categories yield prefix followed
// by start+count. Unknown ones yield TMP<year><count+1 padded to 5 digits>.
func (a *Allocator) Allocate(sub models.SubCategory, count int, now time.Time) Allocation {
	info, ok := a.catalog.Lookup(sub)
	if !ok {
		seq := int64(count) + 1
		return Allocation{
			ID:       fmt.Sprintf("%s%d%05d", FallbackPrefix, now.Year(), seq),
			Sequence: seq,
			Fallback: true,
		}
	}

	seq := info.Range.Start + int64(count)
	return Allocation{
		ID:        info.Range.Prefix + strconv.FormatInt(seq, 10),
		Sequence:  seq,
		OverRange: seq > info.Range.End,
	}
}

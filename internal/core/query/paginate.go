package query

import "backplane/internal/core/record"

// DefaultPageLimit applies when a cursor request does not specify a limit
const DefaultPageLimit = 10

// Page is one slice of a cursor-paginated result set
type Page struct {
	Records []record.Record
	// NextCursor is the id of the last record returned, "" when exhausted
	NextCursor string
	HasMore    bool
}

// Paginate returns the page after cursor over the filtered collection.
// Ordering defaults to createdAt desc when no clause is given; ties on the
// sort keys break by id ascending so the order is total and the cursor
// resolves to the same position on every call. The engine probes one record
// past limit to compute HasMore; the probe record is not returned.
//
// The cursor is the id of the last record the caller has seen, resolved
// against a fresh sort of the current snapshot. Inserts landing ahead of the
// cursor's position stay visible to later pages; this is the documented
// approximation, not snapshot isolation. An unknown cursor (e.g., the record
// was deleted) restarts from the top rather than failing the read path
func Paginate(recs []record.Record, cursor string, limit int, orders []Order) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if len(orders) == 0 {
		orders = []Order{{Field: record.FieldCreatedAt, Dir: Desc}}
	}

	sorted := make([]record.Record, len(recs))
	copy(sorted, recs)
	sortTotal(sorted, orders)

	start := 0
	if cursor != "" {
		for i, r := range sorted {
			if r.ID() == cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(sorted) {
		start = len(sorted)
	}

	window := sorted[start:]
	hasMore := len(window) > limit
	if hasMore {
		window = window[:limit]
	}

	next := ""
	if hasMore && len(window) > 0 {
		next = window[len(window)-1].ID()
	}

	return Page{Records: window, NextCursor: next, HasMore: hasMore}
}

package domain

// Page is one page of a cursor-paginated query. NextCursor is the id of
// the last returned item and is only meaningful when HasMore is true.
type Page[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor string
}

// MakePage derives a page from rows fetched with limit+1: the extra row
// proves there is more, and the cursor is taken from the last kept row.
func MakePage[T any](rows []T, limit int, id func(T) string) Page[T] {
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.HasMore = true
	}
	if page.HasMore && len(page.Items) > 0 {
		page.NextCursor = id(page.Items[len(page.Items)-1])
	}
	return page
}

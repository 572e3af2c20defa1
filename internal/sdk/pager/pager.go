// Package pager slices ordered lists into fixed-size pages.
package pager

// PageSize is the number of users shown per page.
const PageSize = 6

// Count returns ceil(n/size).
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Slice returns items[(page-1)*size : page*size]. Pages are 1-based. Bounds
// are cut to the list so an out-of-range page yields an empty slice; callers
// are expected to keep page within [1, Count].
func Slice[T any](items []T, page, size int) []T {
	// Checked before multiplying so huge pages cannot overflow.
	if page < 1 || size <= 0 || page-1 > len(items)/size {
		return []T{}
	}
	start := (page - 1) * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	if start >= end {
		return []T{}
	}
	return items[start:end]
}

// Nav describes the page controls for a list.
type Nav struct {
	Current int
	Total   int
	Pages   []int
	HasPrev bool
	HasNext bool
}

// Show reports whether controls should be rendered at all.
func (n Nav) Show() bool { return n.Total > 0 }

func (n Nav) Prev() int { return n.Current - 1 }

func (n Nav) Next() int { return n.Current + 1 }

// NewNav builds controls for page current of total. Prev and next are
// disabled at the first and last page.
func NewNav(current, total int) Nav {
	pages := make([]int, total)
	for i := range pages {
		pages[i] = i + 1
	}
	return Nav{
		Current: current,
		Total:   total,
		Pages:   pages,
		HasPrev: total > 0 && current > 1,
		HasNext: total > 0 && current < total,
	}
}

// Clamp keeps page within [1, max(1, total)].
func Clamp(page, total int) int {
	if page > total {
		page = total
	}
	if page < 1 {
		page = 1
	}
	return page
}

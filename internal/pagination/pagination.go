// Package pagination computes the page window shown under a result list.
package pagination

// WindowSize is the maximum number of page numbers shown at once
const WindowSize = 5

// Pager describes the pagination control for one result page
type Pager struct {
	Current int   `json:"current"`
	Total   int   `json:"total"`
	Pages   []int `json:"pages"`
	First   int   `json:"first"`
	Prev    int   `json:"prev"`
	Next    int   `json:"next"`
	Last    int   `json:"last"`
	HasPrev bool  `json:"hasPrev"`
	HasNext bool  `json:"hasNext"`
}

// Visible reports whether the control should be rendered at all
func (p Pager) Visible() bool {
	return p.Total > 1
}

// Window returns the pager for current out of total pages.
// Near the start the window is 1..5, near the end it is the last five
// pages, otherwise it is centred on current.
func Window(current, total int) Pager {
	if total <= 0 {
		return Pager{Pages: []int{}}
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start, end := windowBounds(current, total)
	pages := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		pages = append(pages, n)
	}

	p := Pager{
		Current: current,
		Total:   total,
		Pages:   pages,
		First:   1,
		Last:    total,
		HasPrev: current > 1,
		HasNext: current < total,
		Prev:    current,
		Next:    current,
	}
	if p.HasPrev {
		p.Prev = current - 1
	}
	if p.HasNext {
		p.Next = current + 1
	}
	return p
}

func windowBounds(current, total int) (int, int) {
	if total <= WindowSize {
		return 1, total
	}
	half := WindowSize / 2
	switch {
	case current <= half+1:
		return 1, WindowSize
	case current >= total-half:
		return total - WindowSize + 1, total
	default:
		return current - half, current + half
	}
}

package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    []int
	}{
		{"start", 1, 12, []int{1, 2, 3, 4, 5}},
		{"third page still anchors at start", 3, 12, []int{1, 2, 3, 4, 5}},
		{"middle", 6, 12, []int{4, 5, 6, 7, 8}},
		{"fourth page centres", 4, 12, []int{2, 3, 4, 5, 6}},
		{"end", 12, 12, []int{8, 9, 10, 11, 12}},
		{"third from end", 10, 12, []int{8, 9, 10, 11, 12}},
		{"few pages", 2, 3, []int{1, 2, 3}},
		{"exactly five", 5, 5, []int{1, 2, 3, 4, 5}},
		{"single page", 1, 1, []int{1}},
		{"current past end is clamped", 40, 12, []int{8, 9, 10, 11, 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(tt.current, tt.total).Pages)
		})
	}
}

func TestWindowAffordances(t *testing.T) {
	first := Window(1, 12)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)
	assert.Equal(t, 2, first.Next)
	assert.Equal(t, 12, first.Last)

	last := Window(12, 12)
	assert.True(t, last.HasPrev)
	assert.False(t, last.HasNext)
	assert.Equal(t, 11, last.Prev)
	assert.Equal(t, 1, last.First)
}

func TestWindowEmpty(t *testing.T) {
	p := Window(1, 0)
	assert.Empty(t, p.Pages)
	assert.False(t, p.Visible())
	assert.False(t, Window(1, 1).Visible())
	assert.True(t, Window(1, 2).Visible())
}

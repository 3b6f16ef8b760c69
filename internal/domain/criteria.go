package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// ItemsPerPage is the fixed size of one result page
	ItemsPerPage = 5

	// MinYear is the lower bound of the year-range filter
	MinYear = 1900
)

// SearchField selects which part of a work the free-text query targets
type SearchField string

const (
	FieldAll      SearchField = "allfields"
	FieldTitle    SearchField = "title"
	FieldAuthor   SearchField = "author"
	FieldKeywords SearchField = "keywords"
	FieldAbstract SearchField = "abstract"
	FieldCategory SearchField = "category"
)

// SearchFields lists the fields in selector order
var SearchFields = []SearchField{FieldAll, FieldTitle, FieldAuthor, FieldKeywords, FieldAbstract, FieldCategory}

// ParseSearchField returns the matching field, or FieldAll with ok=false
func ParseSearchField(s string) (SearchField, bool) {
	for _, f := range SearchFields {
		if string(f) == s {
			return f, true
		}
	}
	return FieldAll, false
}

// Endpoint is the search endpoint segment for the field.
// There is no category endpoint; category searches go through allfields.
func (f SearchField) Endpoint() string {
	switch f {
	case FieldTitle, FieldAuthor, FieldKeywords, FieldAbstract:
		return string(f)
	default:
		return string(FieldAll)
	}
}

// Label is the human name shown in the field selector
func (f SearchField) Label() string {
	switch f {
	case FieldTitle:
		return "Title"
	case FieldAuthor:
		return "Author"
	case FieldKeywords:
		return "Keywords"
	case FieldAbstract:
		return "Abstract"
	case FieldCategory:
		return "Category"
	default:
		return "All fields"
	}
}

// YearRange is an inclusive publication-year interval.
// It is stored as a two element array, [from, to].
type YearRange struct {
	From int
	To   int
}

// DefaultYears spans MinYear through the current year
func DefaultYears(now time.Time) YearRange {
	return YearRange{From: MinYear, To: now.Year()}
}

// Normalize clamps both ends into [MinYear, now.Year()] and orders them
func (y YearRange) Normalize(now time.Time) YearRange {
	maxYear := now.Year()
	clamp := func(v int) int {
		if v < MinYear {
			return MinYear
		}
		if v > maxYear {
			return maxYear
		}
		return v
	}
	from, to := clamp(y.From), clamp(y.To)
	if from > to {
		from, to = to, from
	}
	return YearRange{From: from, To: to}
}

// MarshalJSON encodes the range as [from, to]
func (y YearRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{y.From, y.To})
}

// UnmarshalJSON accepts [from, to] or {"from": …, "to": …}
func (y *YearRange) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*y = YearRange{From: obj.From, To: obj.To}
		return nil
	}

	var pair []int
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("year range needs 2 values, got %d", len(pair))
	}
	*y = YearRange{From: pair[0], To: pair[1]}
	return nil
}

// FieldQuery is one row of an advanced search
type FieldQuery struct {
	Field    SearchField `json:"field" validate:"required,oneof=allfields title author keywords abstract category"`
	Term     string      `json:"term" validate:"required,max=200"`
	Operator string      `json:"operator,omitempty" validate:"omitempty,oneof=AND OR NOT"`
}

// SearchCriteria is everything that describes one search or browse request.
// Values are treated as immutable: operations return modified copies.
type SearchCriteria struct {
	Query         string       `json:"query"`
	Field         SearchField  `json:"field"`
	Page          int          `json:"page"`
	Categories    []ID         `json:"categories"`
	ResearchAreas []ID         `json:"researchAreas"`
	Topics        []ID         `json:"topics"`
	Authors       []ID         `json:"authors"`
	Keywords      []ID         `json:"keywords"`
	Years         YearRange    `json:"yearRange"`
	Advanced      []FieldQuery `json:"advancedFields,omitempty"`
}

// DefaultCriteria is the empty browse state
func DefaultCriteria(now time.Time) SearchCriteria {
	return SearchCriteria{
		Query:         "",
		Field:         FieldAll,
		Page:          1,
		Categories:    []ID{},
		ResearchAreas: []ID{},
		Topics:        []ID{},
		Authors:       []ID{},
		Keywords:      []ID{},
		Years:         DefaultYears(now),
	}
}

// Clone returns a deep copy
func (c SearchCriteria) Clone() SearchCriteria {
	out := c
	out.Categories = append([]ID{}, c.Categories...)
	out.ResearchAreas = append([]ID{}, c.ResearchAreas...)
	out.Topics = append([]ID{}, c.Topics...)
	out.Authors = append([]ID{}, c.Authors...)
	out.Keywords = append([]ID{}, c.Keywords...)
	if c.Advanced != nil {
		out.Advanced = append([]FieldQuery{}, c.Advanced...)
	}
	return out
}

// Normalize enforces page >= 1, unique ID lists, a known field and an
// ordered, bounded year range
func (c SearchCriteria) Normalize(now time.Time) SearchCriteria {
	out := c.Clone()
	if out.Page < 1 {
		out.Page = 1
	}
	if _, ok := ParseSearchField(string(out.Field)); !ok {
		out.Field = FieldAll
	}
	out.Categories = UniqueIDs(out.Categories)
	out.ResearchAreas = UniqueIDs(out.ResearchAreas)
	out.Topics = UniqueIDs(out.Topics)
	out.Authors = UniqueIDs(out.Authors)
	out.Keywords = UniqueIDs(out.Keywords)
	if out.Years.From == 0 && out.Years.To == 0 {
		out.Years = DefaultYears(now)
	}
	out.Years = out.Years.Normalize(now)
	return out
}

// WithPage returns a copy pointing at page n (at least 1)
func (c SearchCriteria) WithPage(n int) SearchCriteria {
	out := c.Clone()
	if n < 1 {
		n = 1
	}
	out.Page = n
	return out
}

// HasFilters reports whether any filter ID list is non-empty
func (c SearchCriteria) HasFilters() bool {
	return len(c.Categories) > 0 || len(c.ResearchAreas) > 0 || len(c.Topics) > 0 ||
		len(c.Authors) > 0 || len(c.Keywords) > 0
}

// IsBrowse reports whether the criteria only constrain the year range
func (c SearchCriteria) IsBrowse() bool {
	return c.Query == "" && !c.HasFilters() && len(c.Advanced) == 0
}

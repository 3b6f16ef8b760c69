package domain

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// Opt marks a navigation field as explicitly supplied.
// A zero Opt means "not supplied", which is different from an empty value.
type Opt[T any] struct {
	Value T
	Set   bool
}

// Some wraps a supplied value
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

// Navigation is the (possibly partial) criteria carried by a request to
// the search view. Unset fields fall back to the session store.
type Navigation struct {
	Query         Opt[string]
	Field         Opt[SearchField]
	Page          Opt[int]
	Categories    Opt[[]FilterSelection]
	ResearchAreas Opt[[]FilterSelection]
	Topics        Opt[[]FilterSelection]
	Authors       Opt[[]FilterSelection]
	Keywords      Opt[[]FilterSelection]
	Years         Opt[YearRange]
	Advanced      Opt[[]FieldQuery]
}

// IsEmpty reports whether no field was supplied
func (n *Navigation) IsEmpty() bool {
	if n == nil {
		return true
	}
	return !n.Query.Set && !n.Field.Set && !n.Page.Set &&
		!n.Categories.Set && !n.ResearchAreas.Set && !n.Topics.Set &&
		!n.Authors.Set && !n.Keywords.Set && !n.Years.Set && !n.Advanced.Set
}

// Query string keys used by the search view
const (
	ParamQuery         = "q"
	ParamField         = "field"
	ParamPage          = "page"
	ParamCategories    = "categories"
	ParamResearchAreas = "researchAreas"
	ParamTopics        = "topics"
	ParamAuthors       = "authors"
	ParamKeywords      = "keywords"
	ParamFromYear      = "fromYear"
	ParamToYear        = "toYear"
	ParamAdvanced      = "adv"
)

// ParseNavigation reads a navigation payload from a URL query.
// A key that is present with an empty value counts as supplied.
// List values may be repeated keys or comma separated.
// Malformed numbers are treated as not supplied.
func ParseNavigation(values url.Values) *Navigation {
	nav := &Navigation{}

	if _, ok := values[ParamQuery]; ok {
		nav.Query = Some(strings.TrimSpace(values.Get(ParamQuery)))
	}
	if raw := values.Get(ParamField); raw != "" {
		if f, ok := ParseSearchField(raw); ok {
			nav.Field = Some(f)
		}
	}
	if raw := values.Get(ParamPage); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			if p < 1 {
				p = 1
			}
			nav.Page = Some(p)
		}
	}

	nav.Categories = parseList(values, ParamCategories)
	nav.ResearchAreas = parseList(values, ParamResearchAreas)
	nav.Topics = parseList(values, ParamTopics)
	nav.Authors = parseList(values, ParamAuthors)
	nav.Keywords = parseList(values, ParamKeywords)

	from, fromOK := parseInt(values, ParamFromYear)
	to, toOK := parseInt(values, ParamToYear)
	if fromOK || toOK {
		if !fromOK {
			from = MinYear
		}
		if !toOK {
			to = 9999 // clamped to the current year on normalize
		}
		nav.Years = Some(YearRange{From: from, To: to})
	}

	if raw := values.Get(ParamAdvanced); raw != "" {
		var rows []FieldQuery
		if err := json.Unmarshal([]byte(raw), &rows); err == nil {
			nav.Advanced = Some(rows)
		}
	}

	return nav
}

// EncodeNavigation writes every dimension of c so that the resulting URL
// fully determines the criteria
func EncodeNavigation(c SearchCriteria) url.Values {
	values := url.Values{}
	values.Set(ParamQuery, c.Query)
	values.Set(ParamField, string(c.Field))
	values.Set(ParamPage, strconv.Itoa(c.Page))
	values.Set(ParamCategories, joinIDs(c.Categories))
	values.Set(ParamResearchAreas, joinIDs(c.ResearchAreas))
	values.Set(ParamTopics, joinIDs(c.Topics))
	values.Set(ParamAuthors, joinIDs(c.Authors))
	values.Set(ParamKeywords, joinIDs(c.Keywords))
	values.Set(ParamFromYear, strconv.Itoa(c.Years.From))
	values.Set(ParamToYear, strconv.Itoa(c.Years.To))
	if len(c.Advanced) > 0 {
		if raw, err := json.Marshal(c.Advanced); err == nil {
			values.Set(ParamAdvanced, string(raw))
		}
	}
	return values
}

// NavigationFromCriteria supplies every field of c explicitly
func NavigationFromCriteria(c SearchCriteria) *Navigation {
	nav := &Navigation{
		Query:         Some(c.Query),
		Field:         Some(c.Field),
		Page:          Some(c.Page),
		Categories:    Some(Selections(c.Categories)),
		ResearchAreas: Some(Selections(c.ResearchAreas)),
		Topics:        Some(Selections(c.Topics)),
		Authors:       Some(Selections(c.Authors)),
		Keywords:      Some(Selections(c.Keywords)),
		Years:         Some(c.Years),
	}
	if len(c.Advanced) > 0 {
		nav.Advanced = Some(append([]FieldQuery{}, c.Advanced...))
	}
	return nav
}

func parseList(values url.Values, key string) Opt[[]FilterSelection] {
	raw, ok := values[key]
	if !ok {
		return Opt[[]FilterSelection]{}
	}
	var ids []ID
	for _, entry := range raw {
		ids = append(ids, IDs(strings.Split(entry, ",")...)...)
	}
	return Some(Selections(ids))
}

func parseInt(values url.Values, key string) (int, bool) {
	raw := values.Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func joinIDs(ids []ID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ",")
}

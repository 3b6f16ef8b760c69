package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Labeled is one author or keyword attached to a work
type Labeled struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

// LabeledList is a list of authors or keywords.
// Depending on the endpoint the repository API sends either a structured
// array or a single comma separated string; both decode to the same list.
type LabeledList []Labeled

// UnmarshalJSON accepts "a, b", ["a","b"] or [{"author_id":1,"name":"a"}]
func (l *LabeledList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = nil
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = SplitLabeled(s)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := make(LabeledList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}
		switch item[0] {
		case '"':
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, Labeled{Name: s})
			}
		case '{':
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(item, &obj); err != nil {
				return err
			}
			entry := Labeled{ID: pickID(obj, selectionIDKeys...), Name: pickLabel(obj)}
			if entry.Name != "" || entry.ID != "" {
				out = append(out, entry)
			}
		}
	}
	*l = out
	return nil
}

// SplitLabeled turns a flattened "a, b, c" string into entries without IDs
func SplitLabeled(s string) LabeledList {
	var out LabeledList
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, Labeled{Name: part})
		}
	}
	return out
}

// Names returns the display names
func (l LabeledList) Names() []string {
	names := make([]string, 0, len(l))
	for _, e := range l {
		names = append(names, e.Name)
	}
	return names
}

// String joins the names with ", "
func (l LabeledList) String() string {
	return strings.Join(l.Names(), ", ")
}

// ProjectSummary is one search hit
type ProjectSummary struct {
	ProjectID       ID          `json:"project_id"`
	Title           string      `json:"title"`
	Authors         LabeledList `json:"authors"`
	Keywords        LabeledList `json:"keywords"`
	Abstract        string      `json:"abstract"`
	PublicationDate string      `json:"publication_date"`
	CoverImage      string      `json:"cover_image,omitempty"`
}

// Project is the full record behind the detail view
type Project struct {
	ProjectSummary
	Department   string `json:"department,omitempty"`
	Category     string `json:"category,omitempty"`
	ResearchArea string `json:"research_area,omitempty"`
	Topic        string `json:"topic,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
	ViewCount    int    `json:"view_count"`
	Bookmarked   bool   `json:"bookmarked,omitempty"`
}

// ResultPage is one page of search results
type ResultPage struct {
	Items      []ProjectSummary `json:"items"`
	TotalCount int              `json:"totalCount"`
}

// EmptyResultPage is the state shown for no hits or a failed search
func EmptyResultPage() ResultPage {
	return ResultPage{Items: []ProjectSummary{}, TotalCount: 0}
}

// TotalPages is ceil(TotalCount / perPage)
func (p ResultPage) TotalPages(perPage int) int {
	if perPage < 1 || p.TotalCount <= 0 {
		return 0
	}
	return (p.TotalCount + perPage - 1) / perPage
}

// Bookmark is a saved work of the signed-in user
type Bookmark struct {
	BookmarkID ID             `json:"bookmark_id"`
	Project    ProjectSummary `json:"project"`
	CreatedAt  string         `json:"created_at,omitempty"`
}

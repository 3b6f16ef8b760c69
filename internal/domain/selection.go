package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID identifies a project, author, keyword or taxonomy node.
// The repository API mostly sends numbers; IDs are kept as strings.
type ID string

// UnmarshalJSON accepts a JSON string or a JSON number
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String implements fmt.Stringer
func (id ID) String() string {
	return string(id)
}

// IDs converts raw strings to IDs, dropping blanks
func IDs(raw ...string) []ID {
	out := make([]ID, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, ID(r))
		}
	}
	return out
}

var (
	selectionIDKeys = []string{
		"id", "value", "category_id", "research_area_id", "topic_id",
		"author_id", "keyword_id", "project_id", "user_id",
	}
	selectionLabelKeys = []string{
		"label", "name", "category_name", "research_area_name", "topic_name",
		"author_name", "full_name", "keyword", "keyword_name", "title",
	}
)

// FilterSelection is either a bare ID or an option object carrying an ID.
// Both shapes arrive from different call sites; NormalizeSelections
// reduces them to IDs.
type FilterSelection struct {
	ID    ID     `json:"id"`
	Label string `json:"label,omitempty"`
}

// SelectID wraps a bare ID
func SelectID(id ID) FilterSelection {
	return FilterSelection{ID: id}
}

// UnmarshalJSON accepts 12, "12" or {"author_id": 12, "name": "…"}
func (s *FilterSelection) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*s = FilterSelection{
			ID:    pickID(obj, selectionIDKeys...),
			Label: pickLabel(obj),
		}
		return nil
	}

	var id ID
	if err := id.UnmarshalJSON(b); err != nil {
		return err
	}
	*s = FilterSelection{ID: id}
	return nil
}

// NormalizeSelections extracts IDs from mixed selections, dropping empty
// IDs and duplicates while keeping first-seen order
func NormalizeSelections(selections []FilterSelection) []ID {
	ids := make([]ID, 0, len(selections))
	for _, s := range selections {
		ids = append(ids, s.ID)
	}
	return UniqueIDs(ids)
}

// Selections wraps IDs as selections
func Selections(ids []ID) []FilterSelection {
	out := make([]FilterSelection, 0, len(ids))
	for _, id := range ids {
		out = append(out, SelectID(id))
	}
	return out
}

// UniqueIDs returns ids without blanks or repeats, order preserved
func UniqueIDs(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ToggleID adds id when absent and removes it when present.
// The input slice is not modified.
func ToggleID(set []ID, id ID) []ID {
	out := make([]ID, 0, len(set)+1)
	found := false
	for _, existing := range set {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found && id != "" {
		out = append(out, id)
	}
	return out
}

// ContainsID reports whether id is in set
func ContainsID(set []ID, id ID) bool {
	for _, existing := range set {
		if existing == id {
			return true
		}
	}
	return false
}

func pickID(obj map[string]json.RawMessage, keys ...string) ID {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var id ID
		if err := id.UnmarshalJSON(raw); err == nil && id != "" {
			return id
		}
	}
	return ""
}

func pickString(obj map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// pickLabel finds a display label, falling back to first/last name
func pickLabel(obj map[string]json.RawMessage) string {
	if label := pickString(obj, selectionLabelKeys...); label != "" {
		return label
	}
	first := pickString(obj, "first_name", "firstName", "fname")
	last := pickString(obj, "last_name", "lastName", "lname")
	return strings.TrimSpace(first + " " + last)
}

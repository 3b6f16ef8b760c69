package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dimension names one independently managed facet of filtering
type Dimension string

const (
	DimCategories    Dimension = "categories"
	DimResearchAreas Dimension = "researchAreas"
	DimTopics        Dimension = "topics"
	DimAuthors       Dimension = "authors"
	DimKeywords      Dimension = "keywords"
	DimYears         Dimension = "years"
)

// ParseDimension validates a dimension name from a route or form
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimCategories, DimResearchAreas, DimTopics, DimAuthors, DimKeywords, DimYears:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}

// FilterOption is one selectable entry of a filter widget
type FilterOption struct {
	ID       ID     `json:"id"`
	Label    string `json:"label"`
	ParentID ID     `json:"parentId,omitempty"`
}

// UnmarshalJSON accepts the author, keyword and generic option shapes
func (o *FilterOption) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*o = FilterOption{
		ID:       pickID(obj, selectionIDKeys...),
		Label:    pickLabel(obj),
		ParentID: pickID(obj, "parentId", "parent_id"),
	}
	return nil
}

// Topic is the third level of the subject taxonomy
type Topic struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ResearchArea is the second level of the subject taxonomy
type ResearchArea struct {
	ID     ID      `json:"id"`
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// Category is the top level of the subject taxonomy
type Category struct {
	ID            ID             `json:"id"`
	Name          string         `json:"name"`
	ResearchAreas []ResearchArea `json:"researchAreas"`
}

// UnmarshalJSON accepts both {"category_id","category_name","research_areas"}
// and {"id","name","researchAreas"}
func (c *Category) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.ID = pickID(obj, "category_id", "id")
	c.Name = pickString(obj, "category_name", "name", "label")
	c.ResearchAreas = nil
	return decodeChildren(obj, &c.ResearchAreas, "research_areas", "researchAreas", "children")
}

// UnmarshalJSON accepts snake and camel case keys
func (r *ResearchArea) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID = pickID(obj, "research_area_id", "id")
	r.Name = pickString(obj, "research_area_name", "name", "label")
	r.Topics = nil
	return decodeChildren(obj, &r.Topics, "topics", "children")
}

// UnmarshalJSON accepts snake and camel case keys
func (t *Topic) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	t.ID = pickID(obj, "topic_id", "id")
	t.Name = pickString(obj, "topic_name", "name", "label")
	return nil
}

func decodeChildren[T any](obj map[string]json.RawMessage, dst *[]T, keys ...string) error {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok || len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
			continue
		}
		return json.Unmarshal(raw, dst)
	}
	return nil
}

// FlattenCategories lists every taxonomy node with its parent link,
// keyed by the dimension the node belongs to
func FlattenCategories(categories []Category) map[Dimension][]FilterOption {
	out := map[Dimension][]FilterOption{
		DimCategories:    {},
		DimResearchAreas: {},
		DimTopics:        {},
	}
	for _, c := range categories {
		out[DimCategories] = append(out[DimCategories], FilterOption{ID: c.ID, Label: c.Name})
		for _, ra := range c.ResearchAreas {
			out[DimResearchAreas] = append(out[DimResearchAreas], FilterOption{ID: ra.ID, Label: ra.Name, ParentID: c.ID})
			for _, t := range ra.Topics {
				out[DimTopics] = append(out[DimTopics], FilterOption{ID: t.ID, Label: t.Name, ParentID: ra.ID})
			}
		}
	}
	return out
}

// Package render turns search hits into the cards shown in the result list.
package render

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// DateLayout is how publication dates are displayed
const DateLayout = "January 2, 2006"

var dateInputs = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// Link is a rendered author or keyword
type Link struct {
	Label string
	URL   string
}

// Card is one rendered result
type Card struct {
	ProjectID  domain.ID
	Title      string
	DetailURL  string
	Authors    []Link
	Keywords   []Link
	Abstract   template.HTML
	Date       string
	CoverImage string
}

// Renderer converts markdown abstracts into sanitized HTML
type Renderer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// New creates a renderer
func New() *Renderer {
	return &Renderer{
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
	}
}

// Cards projects every item in order
func (r *Renderer) Cards(items []domain.ProjectSummary) []Card {
	cards := make([]Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, r.Card(item))
	}
	return cards
}

// Card projects a single item
func (r *Renderer) Card(item domain.ProjectSummary) Card {
	return Card{
		ProjectID:  item.ProjectID,
		Title:      item.Title,
		DetailURL:  "/projects/" + url.PathEscape(string(item.ProjectID)),
		Authors:    links(item.Authors, domain.ParamAuthors, domain.FieldAuthor),
		Keywords:   links(item.Keywords, domain.ParamKeywords, domain.FieldKeywords),
		Abstract:   r.HTML(item.Abstract),
		Date:       FormatDate(item.PublicationDate),
		CoverImage: item.CoverImage,
	}
}

// HTML renders markdown and strips anything unsafe
func (r *Renderer) HTML(source string) template.HTML {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buf); err != nil {
		return template.HTML(r.policy.Sanitize(template.HTMLEscapeString(source)))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// FormatDate reformats a backend date, or returns it untouched when it
// does not parse
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateInputs {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DateLayout)
		}
	}
	return raw
}

// links builds search links for authors or keywords. Entries with an ID
// filter by that ID, bare names fall back to a field search.
func links(list domain.LabeledList, param string, field domain.SearchField) []Link {
	out := make([]Link, 0, len(list))
	for _, entry := range list {
		if entry.Name == "" {
			continue
		}
		values := url.Values{}
		values.Set(domain.ParamPage, "1")
		if entry.ID != "" {
			values.Set(domain.ParamQuery, "")
			values.Set(domain.ParamField, string(domain.FieldAll))
			values.Set(param, string(entry.ID))
		} else {
			values.Set(domain.ParamQuery, entry.Name)
			values.Set(domain.ParamField, string(field))
		}
		out = append(out, Link{Label: entry.Name, URL: "/search?" + values.Encode()})
	}
	return out
}

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// Search endpoint names, also used as metric labels
const (
	EndpointBrowse   = "allprojs"
	EndpointAdvanced = "advanced"
)

// SearchRequest is the concrete request derived from criteria
type SearchRequest struct {
	Endpoint string
	Path     string
	Params   url.Values
}

// BuildSearchRequest selects the endpoint for c and derives its parameters.
//
// Criteria without a query, filters or advanced rows browse everything in
// the year range through /api/search/allprojs. Advanced rows go to
// /api/search/advanced. Everything else goes to the field endpoint.
// Empty filter lists are omitted.
func BuildSearchRequest(c domain.SearchCriteria, perPage int) SearchRequest {
	if perPage < 1 {
		perPage = domain.ItemsPerPage
	}
	page := c.Page
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("itemsPerPage", strconv.Itoa(perPage))

	if c.IsBrowse() {
		params.Set("fromYear", strconv.Itoa(c.Years.From))
		params.Set("toYear", strconv.Itoa(c.Years.To))
		return SearchRequest{Endpoint: EndpointBrowse, Path: "/api/search/" + EndpointBrowse, Params: params}
	}

	addIDs(params, "categories[]", c.Categories)
	addIDs(params, "researchAreas[]", c.ResearchAreas)
	addIDs(params, "topics[]", c.Topics)
	addIDs(params, "authors[]", c.Authors)
	addIDs(params, "keywords[]", c.Keywords)

	if len(c.Advanced) > 0 {
		rows := make([]domain.FieldQuery, 0, len(c.Advanced)+1)
		if c.Query != "" {
			rows = append(rows, domain.FieldQuery{Field: c.Field, Term: c.Query, Operator: "AND"})
		}
		rows = append(rows, c.Advanced...)
		fields, _ := json.Marshal(rows)
		dateRange, _ := json.Marshal(map[string]int{"from": c.Years.From, "to": c.Years.To})
		params.Set("searchFields", string(fields))
		params.Set("dateRange", string(dateRange))
		return SearchRequest{Endpoint: EndpointAdvanced, Path: "/api/search/" + EndpointAdvanced, Params: params}
	}

	endpoint := c.Field.Endpoint()
	params.Set("query", c.Query)
	params.Set("fromYear", strconv.Itoa(c.Years.From))
	params.Set("toYear", strconv.Itoa(c.Years.To))
	return SearchRequest{Endpoint: endpoint, Path: "/api/search/" + endpoint, Params: params}
}

func addIDs(params url.Values, key string, ids []domain.ID) {
	for _, id := range ids {
		params.Add(key, string(id))
	}
}

type searchResponse struct {
	Data       []domain.ProjectSummary `json:"data"`
	TotalCount *int                    `json:"totalCount"`
	Total      *int                    `json:"total"`
}

// Search executes a prepared search request
func (c *Client) Search(ctx context.Context, req SearchRequest) (*domain.ResultPage, error) {
	var resp searchResponse
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  req.Path,
		path:   req.Path,
		params: req.Params,
	}, &resp)
	if err != nil {
		return nil, err
	}

	page := &domain.ResultPage{Items: resp.Data, TotalCount: len(resp.Data)}
	if page.Items == nil {
		page.Items = []domain.ProjectSummary{}
	}
	switch {
	case resp.TotalCount != nil:
		page.TotalCount = *resp.TotalCount
	case resp.Total != nil:
		page.TotalCount = *resp.Total
	}
	return page, nil
}

// SearchProjects builds and executes the search for criteria
func (c *Client) SearchProjects(ctx context.Context, criteria domain.SearchCriteria, perPage int) (*domain.ResultPage, error) {
	return c.Search(ctx, BuildSearchRequest(criteria, perPage))
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// ListCategories fetches the category → research area → topic tree
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.list(ctx, "/api/categories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAuthors fetches every author as a filter option
func (c *Client) ListAuthors(ctx context.Context) ([]domain.FilterOption, error) {
	var out []domain.FilterOption
	if err := c.list(ctx, "/api/authors", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListKeywords fetches every keyword as a filter option
func (c *Client) ListKeywords(ctx context.Context) ([]domain.FilterOption, error) {
	var out []domain.FilterOption
	if err := c.list(ctx, "/api/keywords", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// list decodes a bare JSON array, or the array under "data"
func (c *Client) list(ctx context.Context, path string, out interface{}) error {
	var raw json.RawMessage
	if err := c.do(ctx, call{method: http.MethodGet, route: path, path: path}, &raw); err != nil {
		return err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("failed to decode %s envelope: %w", path, err)
		}
		raw = envelope.Data
		if len(raw) == 0 || string(raw) == "null" {
			return nil
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s list: %w", path, err)
	}
	return nil
}

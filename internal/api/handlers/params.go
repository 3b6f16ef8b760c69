package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/repoportal/internal/domain"
)

// QueryParamParser provides helpers for parsing and validating query
// parameters. The first failure sticks; later calls return defaults.
type QueryParamParser struct {
	c   *gin.Context
	err error
}

// NewQueryParamParser creates a new query parameter parser
func NewQueryParamParser(c *gin.Context) *QueryParamParser {
	return &QueryParamParser{c: c}
}

// Error returns any parsing error that occurred
func (p *QueryParamParser) Error() error {
	return p.err
}

func (p *QueryParamParser) int(key string) (int, bool) {
	raw := strings.TrimSpace(p.c.Query(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("%w: '%s' must be a number", domain.ErrInvalidInput, key)
		return 0, false
	}
	return v, true
}

// Page checks the page parameter. Values below 1 are rejected.
func (p *QueryParamParser) Page() {
	if p.err != nil {
		return
	}
	if page, ok := p.int(domain.ParamPage); ok && page < 1 {
		p.err = fmt.Errorf("%w: 'page' must be at least 1", domain.ErrInvalidInput)
	}
}

// Years checks the year range parameters
func (p *QueryParamParser) Years() {
	if p.err != nil {
		return
	}
	from, fromOK := p.int(domain.ParamFromYear)
	if p.err != nil {
		return
	}
	to, toOK := p.int(domain.ParamToYear)
	if p.err != nil {
		return
	}
	if fromOK && toOK && from > to {
		p.err = fmt.Errorf("%w: '%s' must not be after '%s'", domain.ErrInvalidInput, domain.ParamFromYear, domain.ParamToYear)
	}
}

// Limit parses a result limit, bounded to [1, max]
func (p *QueryParamParser) Limit(key string, defaultLimit, max int) int {
	if p.err != nil {
		return defaultLimit
	}
	limit, ok := p.int(key)
	if !ok {
		return defaultLimit
	}
	if limit < 1 {
		return defaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

// String gets a string parameter with optional default
func (p *QueryParamParser) String(key, defaultValue string) string {
	if p.err != nil {
		return defaultValue
	}

	value := strings.TrimSpace(p.c.Query(key))
	if value == "" {
		return defaultValue
	}
	return value
}

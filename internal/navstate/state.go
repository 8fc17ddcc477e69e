// Package navstate owns the browse navigation state and its canonical URL
// query-string encoding. There is exactly one state owner; earlier designs
// with parallel state sources racing to write the URL are a correctness
// hazard this package exists to remove.
package navstate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 20

// URL parameter names. Presence rules: a parameter is absent whenever its
// value is the zero state (empty query, offset 0, no categories, favorites
// off).
const (
	paramQuery      = "q"
	paramOffset     = "offset"
	paramCategories = "types"
	paramFavorites  = "favorites"
)

// State is the complete navigation state of one browse view.
type State struct {
	RawQuery       string
	DebouncedQuery string
	Categories     []string // ordered, unique; order = selection order
	FavoritesOnly  bool
	Offset         int // non-negative multiple of Limit
	Limit          int
}

// CurrentPage derives the zero-based page number.
func (s State) CurrentPage() int {
	if s.Limit <= 0 {
		return 0
	}
	return s.Offset / s.Limit
}

// HasActiveFilters reports whether any non-pagination restriction is in
// effect (settled text, categories or favorites-only).
func (s State) HasActiveFilters() bool {
	return strings.TrimSpace(s.DebouncedQuery) != "" || len(s.Categories) > 0 || s.FavoritesOnly
}

// Signature is the full filter identity of the state, including pagination.
// In-flight queries are keyed by it so a stale response can be recognised
// and discarded.
func (s State) Signature() string {
	return fmt.Sprintf("q=%s|types=%s|favorites=%t|offset=%d|limit=%d",
		strings.TrimSpace(s.DebouncedQuery), strings.Join(s.Categories, ","), s.FavoritesOnly, s.Offset, s.Limit)
}

// Encode writes the state to URL query parameters. Encode and Decode
// round-trip for every state whose categories contain no empty or duplicate
// tokens.
func Encode(s State) url.Values {
	values := url.Values{}
	if q := strings.TrimSpace(s.RawQuery); q != "" {
		values.Set(paramQuery, s.RawQuery)
	}
	if s.Offset != 0 {
		values.Set(paramOffset, strconv.Itoa(s.Offset))
	}
	if len(s.Categories) > 0 {
		values.Set(paramCategories, strings.Join(s.Categories, ","))
	}
	if s.FavoritesOnly {
		values.Set(paramFavorites, "true")
	}
	return values
}

// Decode restores a state from URL query parameters. The query restored
// from the URL is already settled, so it populates both RawQuery and
// DebouncedQuery. Absent or unparseable offsets default to 0, negative
// offsets are clamped to 0, and the offset is floored to a multiple of the
// limit.
func Decode(values url.Values, limit int) State {
	if limit <= 0 {
		limit = DefaultLimit
	}

	offset := 0
	if raw := values.Get(paramOffset); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			offset = parsed - parsed%limit
		}
	}

	var categories []string
	if raw := values.Get(paramCategories); raw != "" {
		seen := make(map[string]struct{})
		for _, token := range strings.Split(raw, ",") {
			if token == "" {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			categories = append(categories, token)
		}
	}

	query := values.Get(paramQuery)
	return State{
		RawQuery:       query,
		DebouncedQuery: query,
		Categories:     categories,
		FavoritesOnly:  values.Get(paramFavorites) == "true",
		Offset:         offset,
		Limit:          limit,
	}
}

// Controller serializes mutations of one State and enforces the pagination
// reset rule: any value change to the debounced query, the category set or
// the favorites-only flag resets the offset to 0 before observers see the
// new state. Re-setting an equal value does not reset.
type Controller struct {
	mu    sync.Mutex
	state State
}

// NewController creates a controller with an empty state and the given page
// limit.
func NewController(limit int) *Controller {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Controller{state: State{Limit: limit}}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Categories = append([]string(nil), c.state.Categories...)
	return s
}

// Restore replaces the whole state, e.g. from a decoded deep-link URL.
// Limit is preserved.
func (c *Controller) Restore(s State) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Limit = c.state.Limit
	c.state = s
	return c.snapshotLocked()
}

// SetQuery stores the raw query text immediately. Pagination is untouched;
// the reset happens when the settled value lands via SetDebouncedQuery.
func (c *Controller) SetQuery(query string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.RawQuery = query
	return c.snapshotLocked()
}

// SetDebouncedQuery publishes the settled query text, resetting pagination
// if the value changed.
func (c *Controller) SetDebouncedQuery(query string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.DebouncedQuery != query {
		c.state.DebouncedQuery = query
		c.resetPaginationLocked()
	}
	return c.snapshotLocked()
}

// SetCategories replaces the selected category set, resetting pagination if
// the selection changed.
func (c *Controller) SetCategories(categories []string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	unique := dedupe(categories)
	if !equalSlices(c.state.Categories, unique) {
		c.state.Categories = unique
		c.resetPaginationLocked()
	}
	return c.snapshotLocked()
}

// ToggleCategory adds the category to the selection (at the end, selection
// order) or removes it if already selected. Always a value change, so
// pagination resets.
func (c *Controller) ToggleCategory(category string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := false
	for i, existing := range c.state.Categories {
		if existing == category {
			c.state.Categories = append(c.state.Categories[:i], c.state.Categories[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		c.state.Categories = append(c.state.Categories, category)
	}
	c.resetPaginationLocked()
	return c.snapshotLocked()
}

// SetFavoritesOnly sets the favorites-only flag, resetting pagination if it
// changed.
func (c *Controller) SetFavoritesOnly(on bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.FavoritesOnly != on {
		c.state.FavoritesOnly = on
		c.resetPaginationLocked()
	}
	return c.snapshotLocked()
}

// ToggleFavoritesOnly flips the favorites-only flag.
func (c *Controller) ToggleFavoritesOnly() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.FavoritesOnly = !c.state.FavoritesOnly
	c.resetPaginationLocked()
	return c.snapshotLocked()
}

// GoToPage jumps to the zero-based page n. Negative pages clamp to 0.
func (c *Controller) GoToPage(n int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	c.state.Offset = n * c.state.Limit
	return c.snapshotLocked()
}

// NextPage advances one page. Unbounded at this layer; the presenter
// disables it past the last page using the query total.
func (c *Controller) NextPage() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Offset += c.state.Limit
	return c.snapshotLocked()
}

// PreviousPage goes back one page, saturating at offset 0.
func (c *Controller) PreviousPage() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Offset -= c.state.Limit
	if c.state.Offset < 0 {
		c.state.Offset = 0
	}
	return c.snapshotLocked()
}

// ClearAll resets every filter and the pagination.
func (c *Controller) ClearAll() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	limit := c.state.Limit
	c.state = State{Limit: limit}
	return c.snapshotLocked()
}

func (c *Controller) resetPaginationLocked() {
	c.state.Offset = 0
}

func dedupe(tokens []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

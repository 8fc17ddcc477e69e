// Package browse ties the navigation state, the search debouncer, the
// favorite set and the query engine together into one interactive browse
// session. The session owns the refresh loop: every state mutation that
// changes the filter identity triggers a background query, and responses
// for superseded filter states are discarded instead of overwriting newer
// results.
package browse

import (
	"context"
	"net/url"
	"sync"
	"time"

	"creature-catalog-service/internal/debounce"
	"creature-catalog-service/internal/domain"
	"creature-catalog-service/internal/favorites"
	"creature-catalog-service/internal/navstate"
	"creature-catalog-service/internal/query"
)

// Executor runs one faceted query.
type Executor interface {
	Execute(ctx context.Context, p query.Params) (*query.Result, error)
}

// Snapshot is a point-in-time view of the session for rendering.
type Snapshot struct {
	Page          []domain.Creature
	Total         int
	Loading       bool
	SearchPending bool
	Err           error
	State         navstate.State
}

// CurrentPage derives the zero-based page number of the snapshot.
func (s Snapshot) CurrentPage() int {
	return s.State.CurrentPage()
}

// Session is safe for concurrent use. It starts out loading and refreshes
// itself after every filter or pagination change; results land
// asynchronously and are observed through Snapshot.
type Session struct {
	nav    *navstate.Controller
	deb    *debounce.Debouncer
	favs   *favorites.Set
	engine Executor
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	page       []domain.Creature
	total      int
	loading    bool
	err        error
	pendingSig string
	closed     bool
}

// NewSession creates a session and issues its initial query. delay is the
// search debounce window; zero picks the default.
func NewSession(engine Executor, favs *favorites.Set, limit int, delay time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		nav:     navstate.NewController(limit),
		favs:    favs,
		engine:  engine,
		ctx:     ctx,
		cancel:  cancel,
		page:    []domain.Creature{},
		loading: true,
	}
	s.deb = debounce.New(delay, s.publishDebounced)
	s.refresh(s.nav.State())
	return s
}

// Favorites exposes the session's favorite set.
func (s *Session) Favorites() *favorites.Set {
	return s.favs
}

// Snapshot returns the current view state.
func (s *Session) Snapshot() Snapshot {
	state := s.nav.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	page := make([]domain.Creature, len(s.page))
	copy(page, s.page)
	return Snapshot{
		Page:          page,
		Total:         s.total,
		Loading:       s.loading,
		SearchPending: s.deb.Pending(),
		Err:           s.err,
		State:         state,
	}
}

// SetQuery records raw search input. The query only takes effect (and only
// resets pagination) once it survives the debounce window.
func (s *Session) SetQuery(text string) {
	s.nav.SetQuery(text)
	s.deb.Set(text)
}

func (s *Session) publishDebounced(text string) {
	s.refresh(s.nav.SetDebouncedQuery(text))
}

// SetCategories replaces the selected categories.
func (s *Session) SetCategories(categories []string) {
	s.refresh(s.nav.SetCategories(categories))
}

// ToggleCategory flips one category in the selection.
func (s *Session) ToggleCategory(category string) {
	s.refresh(s.nav.ToggleCategory(category))
}

// SetFavoritesOnly restricts the view to favorited entries.
func (s *Session) SetFavoritesOnly(on bool) {
	s.refresh(s.nav.SetFavoritesOnly(on))
}

// ToggleFavoritesOnly flips the favorites-only restriction.
func (s *Session) ToggleFavoritesOnly() {
	s.refresh(s.nav.ToggleFavoritesOnly())
}

// GoToPage jumps to the zero-based page n.
func (s *Session) GoToPage(n int) {
	s.refresh(s.nav.GoToPage(n))
}

// NextPage advances one page.
func (s *Session) NextPage() {
	s.refresh(s.nav.NextPage())
}

// PreviousPage goes back one page.
func (s *Session) PreviousPage() {
	s.refresh(s.nav.PreviousPage())
}

// ClearAll drops every filter, any in-flight debounce included, and
// reloads the unfiltered first page.
func (s *Session) ClearAll() {
	s.deb.Cancel()
	s.refresh(s.nav.ClearAll())
}

// Location encodes the current navigation state for the address bar or a
// shareable deep link.
func (s *Session) Location() url.Values {
	return navstate.Encode(s.nav.State())
}

// Restore replaces the navigation state from a decoded deep-link URL and
// refreshes.
func (s *Session) Restore(values url.Values) {
	state := navstate.Decode(values, s.nav.State().Limit)
	s.refresh(s.nav.Restore(state))
}

// Refresh re-runs the query for the current state. Callers use it when an
// external input changes, e.g. when the persisted favorite set finishes
// loading or after a favorite mutation while favorites-only is active.
func (s *Session) Refresh() {
	s.refresh(s.nav.State())
}

// Close stops the debouncer and cancels any in-flight query.
func (s *Session) Close() {
	s.deb.Stop()
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// refresh marks the session loading for the given state and starts a
// background query. While the favorite set is still rehydrating, a
// favorites-only view stays in the loading state without querying; the
// favorites loader triggers Refresh when it completes.
func (s *Session) refresh(state navstate.State) {
	sig := state.Signature()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.err = nil
	s.pendingSig = sig
	s.mu.Unlock()

	if state.FavoritesOnly && s.favs.Loading() {
		return
	}

	go s.execute(state, sig)
}

func (s *Session) execute(state navstate.State, sig string) {
	params := query.Params{
		Text:          state.DebouncedQuery,
		Categories:    state.Categories,
		FavoritesOnly: state.FavoritesOnly,
		Offset:        state.Offset,
		Limit:         state.Limit,
	}
	if state.FavoritesOnly {
		params.FavoriteIDs = s.favs.IDs()
	}

	result, err := s.engine.Execute(s.ctx, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A newer filter state superseded this query while it was in flight;
	// its response must not overwrite the newer one.
	if s.closed || sig != s.pendingSig {
		return
	}
	s.loading = false
	if err != nil {
		s.err = err
		return
	}
	s.page = result.Page
	s.total = result.Total
}

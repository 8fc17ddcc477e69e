package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"creature-catalog-service/internal/catalog"
	"creature-catalog-service/internal/domain"
	"creature-catalog-service/internal/navstate"
	"creature-catalog-service/internal/query"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// CatalogReader is the subset of the catalog client the handlers use for
// direct lookups.
type CatalogReader interface {
	GetByName(ctx context.Context, name string) (*domain.Creature, error)
	GetByID(ctx context.Context, id int64) (*domain.Creature, error)
	ListCategories(ctx context.Context) ([]domain.CategoryRef, error)
}

// QueryExecutor runs one faceted browse query.
type QueryExecutor interface {
	Execute(ctx context.Context, p query.Params) (*query.Result, error)
}

// FavoriteKeeper is the favorite set as the handlers see it.
type FavoriteKeeper interface {
	Add(ctx context.Context, id int64)
	Remove(ctx context.Context, id int64)
	Toggle(ctx context.Context, id int64) bool
	Clear(ctx context.Context)
	IDs() []int64
	Count() int
	Loading() bool
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	catalog   CatalogReader
	engine    QueryExecutor
	favorites FavoriteKeeper
	pageLimit int
	validate  *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies. pageLimit is
// the fixed page size of the browse listing.
func NewHTTPHandler(c CatalogReader, e QueryExecutor, f FavoriteKeeper, pageLimit int) *HTTPHandler {
	if pageLimit <= 0 {
		pageLimit = navstate.DefaultLimit
	}
	return &HTTPHandler{
		catalog:   c,
		engine:    e,
		favorites: f,
		pageLimit: pageLimit,
		validate:  validator.New(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("ERROR: Failed to encode JSON response: %v", err)
			http.Error(w, `{"error": "Internal server error during JSON encoding"}`, http.StatusInternalServerError)
		}
	}
}

// --- Browse Handlers ---

// BrowseResponse is one page of the filtered listing. Data is never null.
type BrowseResponse struct {
	Data        []domain.Creature `json:"data"`
	Total       int               `json:"total"`
	Offset      int               `json:"offset"`
	Limit       int               `json:"limit"`
	CurrentPage int               `json:"current_page"`
}

// ListCreatures serves the faceted listing. The request's query string uses
// the same encoding as a shareable browse URL: q, types, favorites, offset.
func (h *HTTPHandler) ListCreatures(w http.ResponseWriter, r *http.Request) {
	state := navstate.Decode(r.URL.Query(), h.pageLimit)

	params := query.Params{
		Text:          state.DebouncedQuery,
		Categories:    state.Categories,
		FavoritesOnly: state.FavoritesOnly,
		Offset:        state.Offset,
		Limit:         state.Limit,
	}
	if state.FavoritesOnly {
		if h.favorites.Loading() {
			// The persisted set is not known yet; answering now would
			// wrongly report an empty favorites view.
			w.Header().Set("Retry-After", "1")
			respondWithError(w, http.StatusServiceUnavailable, "Favorites are still loading")
			return
		}
		params.FavoriteIDs = h.favorites.IDs()
	}

	result, err := h.engine.Execute(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: ListCreatures query failed: %v", err)
		respondWithError(w, http.StatusBadGateway, "Upstream catalog unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, BrowseResponse{
		Data:        result.Page,
		Total:       result.Total,
		Offset:      state.Offset,
		Limit:       state.Limit,
		CurrentPage: state.CurrentPage(),
	})
}

// GetCreature fetches one creature by numeric id or by name.
func (h *HTTPHandler) GetCreature(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "nameOrId")
	if key == "" {
		respondWithError(w, http.StatusBadRequest, "Missing creature identifier")
		return
	}

	var creature *domain.Creature
	var err error
	if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		if id <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid creature ID format")
			return
		}
		creature, err = h.catalog.GetByID(r.Context(), id)
	} else {
		creature, err = h.catalog.GetByName(r.Context(), strings.ToLower(key))
	}

	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Creature not found")
			return
		}
		log.Printf("ERROR: GetCreature lookup for %q failed: %v", key, err)
		respondWithError(w, http.StatusBadGateway, "Upstream catalog unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, creature)
}

// ListCategories serves the category catalog used to populate the filter
// panel.
func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: ListCategories failed: %v", err)
		respondWithError(w, http.StatusBadGateway, "Upstream catalog unavailable")
		return
	}
	if categories == nil {
		categories = []domain.CategoryRef{}
	}
	respondWithJSON(w, http.StatusOK, categories)
}

// --- Favorites Handlers ---

// FavoritesResponse reports the favorite set in insertion order.
type FavoritesResponse struct {
	IDs     []int64 `json:"ids"`
	Count   int     `json:"count"`
	Loading bool    `json:"loading"`
}

func (h *HTTPHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	ids := h.favorites.IDs()
	if ids == nil {
		ids = []int64{}
	}
	respondWithJSON(w, http.StatusOK, FavoritesResponse{
		IDs:     ids,
		Count:   h.favorites.Count(),
		Loading: h.favorites.Loading(),
	})
}

func (h *HTTPHandler) parseFavoriteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid creature ID format")
		return 0, false
	}
	if err := h.validate.Var(id, "gt=0"); err != nil {
		respondWithError(w, http.StatusBadRequest, "Creature ID must be positive")
		return 0, false
	}
	return id, true
}

// AddFavorite is idempotent: favoriting an already-favorited id succeeds.
func (h *HTTPHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseFavoriteID(w, r)
	if !ok {
		return
	}
	h.favorites.Add(r.Context(), id)
	respondWithJSON(w, http.StatusNoContent, nil)
}

// RemoveFavorite is idempotent: unfavoriting an absent id succeeds.
func (h *HTTPHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseFavoriteID(w, r)
	if !ok {
		return
	}
	h.favorites.Remove(r.Context(), id)
	respondWithJSON(w, http.StatusNoContent, nil)
}

// ToggleFavoriteResponse reports the membership state after a toggle.
type ToggleFavoriteResponse struct {
	ID       int64 `json:"id"`
	Favorite bool  `json:"favorite"`
}

func (h *HTTPHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseFavoriteID(w, r)
	if !ok {
		return
	}
	nowFavorite := h.favorites.Toggle(r.Context(), id)
	respondWithJSON(w, http.StatusOK, ToggleFavoriteResponse{ID: id, Favorite: nowFavorite})
}

func (h *HTTPHandler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	h.favorites.Clear(r.Context())
	respondWithJSON(w, http.StatusNoContent, nil)
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/creatures", func(r chi.Router) {
		r.Get("/", h.ListCreatures) // GET /api/v1/creatures
		r.Get("/{nameOrId}", h.GetCreature)
	})

	r.Get("/api/v1/categories", h.ListCategories)

	r.Route("/api/v1/favorites", func(r chi.Router) {
		r.Get("/", h.GetFavorites)
		r.Delete("/", h.ClearFavorites)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", h.AddFavorite)
			r.Delete("/", h.RemoveFavorite)
			r.Post("/toggle", h.ToggleFavorite)
		})
	})
}

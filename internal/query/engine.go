// Package query implements the faceted query engine. The remote catalog
// cannot filter server-side, so the engine emulates the combined
// text/category/favorites restriction client-side: it builds a candidate
// name set, filters it, takes the total before pagination, slices one page
// and hydrates only that page.
package query

import (
	"context"
	"log"
	"strings"
	"sync"

	"creature-catalog-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

// CatalogClient is the subset of the remote catalog the engine needs.
type CatalogClient interface {
	ListPage(ctx context.Context, offset, limit int) ([]domain.NamedRef, int, error)
	ListAllNames(ctx context.Context) ([]domain.NamedRef, error)
	GetByName(ctx context.Context, name string) (*domain.Creature, error)
	GetByID(ctx context.Context, id int64) (*domain.Creature, error)
	ListCategoryMembers(ctx context.Context, category string) ([]string, error)
}

// Params are the inputs of one query execution.
type Params struct {
	Text          string
	Categories    []string
	FavoritesOnly bool
	FavoriteIDs   []int64
	Offset        int
	Limit         int
}

// Result is one page of the filtered catalog plus the size of the full
// filtered set before pagination.
type Result struct {
	Page  []domain.Creature `json:"data"`
	Total int               `json:"total"`
}

// Engine executes faceted queries against a CatalogClient. It holds no
// state of its own: given the same inputs and remote state it returns the
// same result.
type Engine struct {
	client CatalogClient
}

// New creates an Engine.
func New(client CatalogClient) *Engine {
	return &Engine{client: client}
}

// Execute computes the filtered, paginated result. Any failed required
// fetch aborts the whole query (no partial results); the sole exception is
// per-id favorites resolution, where an id that no longer resolves is
// dropped silently.
func (e *Engine) Execute(ctx context.Context, p Params) (*Result, error) {
	text := strings.ToLower(strings.TrimSpace(p.Text))

	// Favorites-only with nothing favorited needs no remote calls at all.
	if p.FavoritesOnly && len(p.FavoriteIDs) == 0 {
		return &Result{Page: []domain.Creature{}, Total: 0}, nil
	}

	// No filters active: plain paginated listing, total as reported by the
	// backend.
	if text == "" && len(p.Categories) == 0 && !p.FavoritesOnly {
		return e.plainPage(ctx, p.Offset, p.Limit)
	}

	// Candidate set precedence: favorites, then categories, then the
	// capped name universe for text-only queries.
	var candidates []string
	switch {
	case p.FavoritesOnly:
		candidates = e.resolveFavorites(ctx, p.FavoriteIDs)
	case len(p.Categories) > 0:
		var err error
		candidates, err = e.intersectCategories(ctx, p.Categories)
		if err != nil {
			return nil, err
		}
	default:
		refs, err := e.client.ListAllNames(ctx)
		if err != nil {
			return nil, err
		}
		candidates = make([]string, 0, len(refs))
		for _, ref := range refs {
			candidates = append(candidates, ref.Name)
		}
	}

	// Both restrictions together: the favorites-derived set is further
	// intersected with the category intersection.
	if p.FavoritesOnly && len(p.Categories) > 0 {
		categoryNames, err := e.intersectCategories(ctx, p.Categories)
		if err != nil {
			return nil, err
		}
		members := toSet(categoryNames)
		kept := candidates[:0]
		for _, name := range candidates {
			if _, ok := members[name]; ok {
				kept = append(kept, name)
			}
		}
		candidates = kept
	}

	if text != "" {
		kept := candidates[:0]
		for _, name := range candidates {
			if strings.Contains(strings.ToLower(name), text) {
				kept = append(kept, name)
			}
		}
		candidates = kept
	}

	total := len(candidates)
	page, err := e.hydrate(ctx, slicePage(candidates, p.Offset, p.Limit))
	if err != nil {
		return nil, err
	}
	return &Result{Page: page, Total: total}, nil
}

// plainPage delegates to the backend's own pagination and hydrates the
// returned page.
func (e *Engine) plainPage(ctx context.Context, offset, limit int) (*Result, error) {
	refs, total, err := e.client.ListPage(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	page, err := e.hydrate(ctx, names)
	if err != nil {
		return nil, err
	}
	return &Result{Page: page, Total: total}, nil
}

// resolveFavorites resolves favorite ids to names, concurrently and
// tolerantly: an id that no longer resolves is dropped, never fatal. The
// returned names keep the favorites set's insertion order.
func (e *Engine) resolveFavorites(ctx context.Context, ids []int64) []string {
	resolved := make([]*domain.Creature, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			creature, err := e.client.GetByID(ctx, id)
			if err != nil {
				log.Printf("DEBUG: query: favorite id %d no longer resolves, skipping: %v", id, err)
				return
			}
			resolved[i] = creature
		}(i, id)
	}
	wg.Wait()

	names := make([]string, 0, len(ids))
	for _, creature := range resolved {
		if creature != nil {
			names = append(names, creature.Name)
		}
	}
	return names
}

// intersectCategories fetches each selected category's member list
// concurrently and intersects them: a candidate must appear in every
// selected category (AND, not OR). Order follows the first category's
// member list.
func (e *Engine) intersectCategories(ctx context.Context, categories []string) ([]string, error) {
	memberLists := make([][]string, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			members, err := e.client.ListCategoryMembers(gctx, category)
			if err != nil {
				return err
			}
			memberLists[i] = members
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Copied: member lists may be shared with the client's cache and the
	// in-place filtering below must not mutate them.
	result := append([]string(nil), memberLists[0]...)
	for _, members := range memberLists[1:] {
		set := toSet(members)
		kept := result[:0]
		for _, name := range result {
			if _, ok := set[name]; ok {
				kept = append(kept, name)
			}
		}
		result = kept
	}
	return result, nil
}

// hydrate fetches the detail of every name on the page, concurrently and
// fail-fast: one failed lookup fails the whole query rather than returning
// a silently partial page.
func (e *Engine) hydrate(ctx context.Context, names []string) ([]domain.Creature, error) {
	page := make([]domain.Creature, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			creature, err := e.client.GetByName(gctx, name)
			if err != nil {
				return err
			}
			page[i] = *creature
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func slicePage(names []string, offset, limit int) []string {
	if offset >= len(names) || offset < 0 {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(names) {
		end = len(names)
	}
	return names[offset:end]
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

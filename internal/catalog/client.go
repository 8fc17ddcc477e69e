package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"creature-catalog-service/internal/domain"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://pokeapi.co/api/v2"
	defaultTimeout = 30 * time.Second
	// Minimum spacing between outbound requests (10 req/sec).
	defaultRequestInterval = 100 * time.Millisecond
	// The listing endpoint is effectively unbounded; the name universe used
	// for text-only filtering is capped to the first 1000 entries.
	defaultNameCap = 1000

	// Staleness windows for cached responses. Category membership changes
	// far less often than the catalog itself.
	listDetailTTL      = 5 * time.Minute
	categoryCatalogTTL = 30 * time.Minute
)

// Predefined errors for remote catalog operations.
var (
	// ErrRemoteUnavailable covers any failed fetch or non-success status.
	ErrRemoteUnavailable = errors.New("catalog: remote catalog unavailable")
	// ErrNotFound is the not-found flavour of ErrRemoteUnavailable;
	// errors.Is(err, ErrRemoteUnavailable) holds for it too.
	ErrNotFound = fmt.Errorf("%w: not found", ErrRemoteUnavailable)
)

// Client is a read-only client for the remote creature catalog. The remote
// resource only supports offset/limit listing, single-item detail lookup and
// category member lookup; all combined filtering happens downstream.
//
// Outbound requests are rate limited, and responses are cached in-process
// with a staleness window so repeated browse interactions do not hammer the
// backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	cache       *ttlCache
	nameCap     int
	userAgent   string
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RequestInterval time.Duration
	NameCap         int
}

// NewClient creates a remote catalog client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestInterval <= 0 {
		opts.RequestInterval = defaultRequestInterval
	}
	if opts.NameCap <= 0 {
		opts.NameCap = defaultNameCap
	}
	return &Client{
		baseURL:     opts.BaseURL,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		rateLimiter: rate.NewLimiter(rate.Every(opts.RequestInterval), 1),
		cache:       newTTLCache(),
		nameCap:     opts.NameCap,
		userAgent:   "creature-catalog-service/1.0",
	}
}

// --- Wire types (remote JSON shapes) ---

type listResponse struct {
	Count   int `json:"count"`
	Results []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"results"`
}

type detailResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Height  int    `json:"height"`
	Weight  int    `json:"weight"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
		Other        struct {
			OfficialArtwork struct {
				FrontDefault string `json:"front_default"`
			} `json:"official-artwork"`
		} `json:"other"`
	} `json:"sprites"`
	Types []struct {
		Type struct {
			Name string `json:"name"`
		} `json:"type"`
	} `json:"types"`
	Abilities []struct {
		Ability struct {
			Name string `json:"name"`
		} `json:"ability"`
	} `json:"abilities"`
	Stats []struct {
		BaseStat int `json:"base_stat"`
		Stat     struct {
			Name string `json:"name"`
		} `json:"stat"`
	} `json:"stats"`
}

type categoryListResponse struct {
	Results []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"results"`
}

type categoryDetailResponse struct {
	Members []struct {
		Entry struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"pokemon"`
	} `json:"pokemon"`
}

func (d *detailResponse) toCreature() *domain.Creature {
	c := &domain.Creature{
		ID:              d.ID,
		Name:            d.Name,
		HeightDeciUnits: d.Height,
		WeightDeciUnits: d.Weight,
		Types:           make([]string, 0, len(d.Types)),
	}
	for _, t := range d.Types {
		c.Types = append(c.Types, t.Type.Name)
	}
	for _, a := range d.Abilities {
		c.Abilities = append(c.Abilities, a.Ability.Name)
	}
	for _, s := range d.Stats {
		c.Stats = append(c.Stats, domain.Stat{Name: s.Stat.Name, Base: s.BaseStat})
	}
	// Prefer the official artwork; fall back to the default sprite.
	sprite := d.Sprites.Other.OfficialArtwork.FrontDefault
	if sprite == "" {
		sprite = d.Sprites.FrontDefault
	}
	if sprite != "" {
		c.SpriteURL = &sprite
	}
	return c
}

// --- Operations ---

// ListPage fetches one page of the catalog listing and the backend-reported
// total catalog count.
func (c *Client) ListPage(ctx context.Context, offset, limit int) ([]domain.NamedRef, int, error) {
	key := fmt.Sprintf("list:%d:%d", offset, limit)
	if cached, ok := c.cache.get(key); ok {
		page := cached.(listResponse)
		return refsFromList(page), page.Count, nil
	}

	var page listResponse
	url := fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", c.baseURL, offset, limit)
	if err := c.doRequest(ctx, url, &page); err != nil {
		return nil, 0, err
	}
	c.cache.put(key, page, listDetailTTL)
	return refsFromList(page), page.Count, nil
}

// ListAllNames fetches the capped name universe used for text-only filtering.
func (c *Client) ListAllNames(ctx context.Context) ([]domain.NamedRef, error) {
	if cached, ok := c.cache.get("names"); ok {
		return cached.([]domain.NamedRef), nil
	}

	var page listResponse
	url := fmt.Sprintf("%s/pokemon?offset=0&limit=%d", c.baseURL, c.nameCap)
	if err := c.doRequest(ctx, url, &page); err != nil {
		return nil, err
	}
	refs := refsFromList(page)
	c.cache.put("names", refs, listDetailTTL)
	return refs, nil
}

// GetByName fetches one creature's detail by its display name.
func (c *Client) GetByName(ctx context.Context, name string) (*domain.Creature, error) {
	return c.getDetail(ctx, "detail:name:"+name, name)
}

// GetByID fetches one creature's detail by its backend identifier.
func (c *Client) GetByID(ctx context.Context, id int64) (*domain.Creature, error) {
	return c.getDetail(ctx, fmt.Sprintf("detail:id:%d", id), fmt.Sprintf("%d", id))
}

func (c *Client) getDetail(ctx context.Context, key, nameOrID string) (*domain.Creature, error) {
	if cached, ok := c.cache.get(key); ok {
		return cached.(*domain.Creature), nil
	}

	var detail detailResponse
	url := fmt.Sprintf("%s/pokemon/%s", c.baseURL, nameOrID)
	if err := c.doRequest(ctx, url, &detail); err != nil {
		return nil, err
	}
	creature := detail.toCreature()
	c.cache.put(key, creature, listDetailTTL)
	// A detail fetched by id is the same record as one fetched by name.
	c.cache.put("detail:name:"+creature.Name, creature, listDetailTTL)
	return creature, nil
}

// ListCategories fetches the category catalog.
func (c *Client) ListCategories(ctx context.Context) ([]domain.CategoryRef, error) {
	if cached, ok := c.cache.get("categories"); ok {
		return cached.([]domain.CategoryRef), nil
	}

	var list categoryListResponse
	if err := c.doRequest(ctx, c.baseURL+"/type", &list); err != nil {
		return nil, err
	}
	refs := make([]domain.CategoryRef, 0, len(list.Results))
	for _, r := range list.Results {
		refs = append(refs, domain.CategoryRef{Name: r.Name, URL: r.URL})
	}
	c.cache.put("categories", refs, categoryCatalogTTL)
	return refs, nil
}

// ListCategoryMembers fetches the member name list of one category, in the
// backend's order. An unknown category fails with ErrRemoteUnavailable.
func (c *Client) ListCategoryMembers(ctx context.Context, category string) ([]string, error) {
	key := "members:" + category
	if cached, ok := c.cache.get(key); ok {
		return cached.([]string), nil
	}

	var detail categoryDetailResponse
	if err := c.doRequest(ctx, c.baseURL+"/type/"+category, &detail); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(detail.Members))
	for _, m := range detail.Members {
		names = append(names, m.Entry.Name)
	}
	c.cache.put(key, names, listDetailTTL)
	return names, nil
}

// doRequest performs one rate-limited GET and decodes the JSON response.
// Failures are never retried here; the caller surfaces them as a single
// query failure.
func (c *Client) doRequest(ctx context.Context, url string, result interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrRemoteUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrRemoteUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: reading response: %v", ErrRemoteUnavailable, err)
		}
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrRemoteUnavailable, err)
		}
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	default:
		return fmt.Errorf("%w: status %d from %s", ErrRemoteUnavailable, resp.StatusCode, url)
	}
}

func refsFromList(page listResponse) []domain.NamedRef {
	refs := make([]domain.NamedRef, 0, len(page.Results))
	for _, r := range page.Results {
		refs = append(refs, domain.NamedRef{Name: r.Name, URL: r.URL})
	}
	return refs
}

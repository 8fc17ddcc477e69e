package domain

// Creature is one catalog entry as assembled from the remote resource.
// Instances are immutable once fetched. Height and weight are in the
// backend's deci-units (decimetres / hectograms).
type Creature struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Types           []string `json:"types"`
	HeightDeciUnits int      `json:"height"`
	WeightDeciUnits int      `json:"weight"`
	Abilities       []string `json:"abilities,omitempty"`
	Stats           []Stat   `json:"stats,omitempty"`
	SpriteURL       *string  `json:"sprite_url,omitempty"` // Pointer for nullable field; the backend may have no sprite
}

// Stat is one named base stat (hp, attack, ...). Base is typically 0-255
// but the backend does not bound it.
type Stat struct {
	Name string `json:"name"`
	Base int    `json:"base"`
}

// NamedRef is a row from the paginated listing: a creature name plus the
// URL of its detail resource.
type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CategoryRef is an entry from the category catalog.
type CategoryRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

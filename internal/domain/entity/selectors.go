package entity

import "time"

// CachedSelectors is the per-host selector set discovered by the
// SelectorAssistant (or declared in configuration) and persisted to
// selectors/<host>.json for reuse across runs.
type CachedSelectors struct {
	Domain       string    `json:"domain"`
	Title        *string   `json:"title"`
	Price        *string   `json:"price"`
	Image        *string   `json:"image"`
	Category     *string   `json:"category"`
	Container    *string   `json:"container,omitempty"`
	Confidence   float64   `json:"confidence"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// ToSelectors converts the cached fields into the generic Selectors map
// consumed by extractors, skipping fields that were not discovered.
func (c *CachedSelectors) ToSelectors() Selectors {
	sel := Selectors{}
	if c.Container != nil {
		sel["container"] = *c.Container
	}
	if c.Title != nil {
		sel["title"] = *c.Title
	}
	if c.Price != nil {
		sel["price"] = *c.Price
	}
	if c.Image != nil {
		sel["image"] = *c.Image
	}
	if c.Category != nil {
		sel["category"] = *c.Category
	}
	return sel
}

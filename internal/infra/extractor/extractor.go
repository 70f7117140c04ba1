// Package extractor turns a fetched body into Records using a SourceSpec's
// selectors. Each SourceKind gets its own extractor; News and Ecommerce walk
// HTML with goquery, Social walks JSON with gjson, and Custom is a fully
// selector-driven generic HTML walker.
package extractor

import (
	"errors"
	"fmt"

	"webharvest/internal/domain/entity"
)

// ExtractError wraps a failure to parse or walk a fetched body.
type ExtractError struct {
	Source string
	Err    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extractor produces Records from a fetched body for a given SourceSpec.
// Implementations must never return a nil error with a nil slice for an
// empty-but-well-formed container; an empty match set is an empty slice,
// not an error.
type Extractor interface {
	Extract(spec *entity.SourceSpec, body []byte) ([]*entity.Record, error)
}

// ErrUnsupportedKind is returned by Registry.ForSpec when no extractor is
// registered for a SourceKind.
var ErrUnsupportedKind = errors.New("extractor: unsupported source kind")

// Registry dispatches to the Extractor registered for a SourceKind.
type Registry struct {
	byKind map[entity.SourceKind]Extractor
	rss    Extractor
}

// NewRegistry builds the default registry: News and Ecommerce share the HTML
// walker with different field sets, Social uses the JSON walker, and Custom
// uses the generic selector-driven HTML walker unless flavored as RSS.
func NewRegistry() *Registry {
	html := &HTMLExtractor{}
	return &Registry{
		byKind: map[entity.SourceKind]Extractor{
			entity.KindNews:      html,
			entity.KindEcommerce: html,
			entity.KindSocial:    &JSONExtractor{},
			entity.KindCustom:    html,
		},
		rss: &RSSExtractor{},
	}
}

// ForSpec returns the Extractor that should handle spec, consulting its
// Format before falling back to its Kind.
func (r *Registry) ForSpec(spec *entity.SourceSpec) (Extractor, error) {
	if spec.Format == entity.FormatRSS {
		return r.rss, nil
	}
	ex, ok := r.byKind[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, spec.Kind)
	}
	return ex, nil
}

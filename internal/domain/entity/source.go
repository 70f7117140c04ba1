package entity

import (
	"errors"
	"fmt"
)

// SourceKind enumerates the extractor family a SourceSpec is routed to.
type SourceKind string

const (
	KindNews      SourceKind = "news"
	KindEcommerce SourceKind = "ecommerce"
	KindSocial    SourceKind = "social"
	KindCustom    SourceKind = "custom"
)

// SourceFormat selects the body parser for a source. With the default
// FormatHTML the source uses its kind's extractor; FormatRSS reads an
// Atom/RSS feed instead, whatever the kind, and Selectors is then not
// required.
type SourceFormat string

const (
	FormatHTML SourceFormat = ""
	FormatRSS  SourceFormat = "rss"
)

// Selectors maps a canonical field name to a CSS selector (HTML sources) or
// a dotted/bracket path (JSON sources). Keys commonly used:
// container, title, price, image, author, category, url, content.
type Selectors map[string]string

// SourceSpec is the per-source input to the engine, created from configuration
// and immutable for the lifetime of a run.
type SourceSpec struct {
	Name            string
	URL             string
	Kind            SourceKind
	Format          SourceFormat
	Selectors       Selectors
	RateLimitHintMs int
}

// Validate checks that the SourceSpec is well-formed.
func (s *SourceSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "source name is required"}
	}
	if err := ValidateURL(s.URL); err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	switch s.Kind {
	case KindNews, KindEcommerce, KindSocial, KindCustom:
	case "":
		s.Kind = KindCustom
	default:
		return fmt.Errorf("source %q: invalid kind %q (must be news, ecommerce, social, or custom)", s.Name, s.Kind)
	}
	switch s.Format {
	case FormatHTML, FormatRSS:
	default:
		return fmt.Errorf("source %q: invalid format %q (must be empty or rss)", s.Name, s.Format)
	}
	if s.Kind == KindCustom && s.Format != FormatRSS && len(s.Selectors) == 0 {
		return errors.New("source " + s.Name + ": selectors are required for custom sources")
	}
	return nil
}

// Host returns the hostname of the source URL, used to key SelectorAssistant
// inference.
func (s *SourceSpec) Host() (string, error) {
	return hostOf(s.URL)
}

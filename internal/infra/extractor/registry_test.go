package extractor

import (
	"testing"

	"webharvest/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ForKnownKinds(t *testing.T) {
	r := NewRegistry()
	for _, kind := range []entity.SourceKind{entity.KindNews, entity.KindEcommerce, entity.KindSocial, entity.KindCustom} {
		ex, err := r.ForSpec(&entity.SourceSpec{Kind: kind})
		require.NoError(t, err)
		assert.NotNil(t, ex)
	}
}

func TestRegistry_UnsupportedKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.ForSpec(&entity.SourceSpec{Kind: entity.SourceKind("unknown")})
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestRegistry_RSSFormatOverridesKind(t *testing.T) {
	r := NewRegistry()
	ex, err := r.ForSpec(&entity.SourceSpec{Kind: entity.KindCustom, Format: entity.FormatRSS})
	require.NoError(t, err)
	assert.IsType(t, &RSSExtractor{}, ex)
}

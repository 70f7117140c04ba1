package dedupe

import (
	"testing"

	"webharvest/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func rec(title, source string) *entity.Record {
	return &entity.Record{ID: title + "|" + source, Title: title, Source: source}
}

func TestDeduplicator_RemovesExactDuplicate(t *testing.T) {
	xs := []*entity.Record{rec("Hello", "a"), rec("Hello", "a")}
	out := New().Run(xs)
	assert.Len(t, out, 1)
}

func TestDeduplicator_CaseAndWhitespaceInsensitive(t *testing.T) {
	xs := []*entity.Record{rec("Hello World", "a"), rec("  hello world  ", "a")}
	out := New().Run(xs)
	assert.Len(t, out, 1)
}

func TestDeduplicator_DifferentSourceNotDuplicate(t *testing.T) {
	xs := []*entity.Record{rec("Hello", "a"), rec("Hello", "b")}
	out := New().Run(xs)
	assert.Len(t, out, 2)
}

func TestDeduplicator_FirstSeenWins(t *testing.T) {
	first := rec("Hello", "a")
	second := rec("Hello", "a")
	second.Content = "different content"

	out := New().Run([]*entity.Record{first, second})
	require := assert.New(t)
	require.Len(out, 1)
	require.Equal(first, out[0])
}

func TestDeduplicator_Idempotent(t *testing.T) {
	xs := []*entity.Record{rec("A", "1"), rec("B", "1"), rec("A", "1")}
	once := New().Run(xs)
	twice := New().Run(once)
	assert.Equal(t, once, twice)
}

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguages(t *testing.T) {
	src := map[string]string{"Q36368": "ku"}
	l := NewLanguages(src)
	src["Q36368"] = "changed"

	code, ok := l.Code("Q36368")
	assert.True(t, ok)
	assert.Equal(t, "ku", code, "map must be copied on construction")

	_, ok = l.Code("Q1860")
	assert.False(t, ok)

	snap := l.Snapshot()
	snap["Q1860"] = "en"
	assert.Equal(t, 1, l.Len(), "snapshot must not alias the cache")
}

func TestLocations(t *testing.T) {
	l := NewLocations(map[string]Location{
		"Q83286": {Label: "Amed", Country: "Tirkiye"},
		"Q142":   {Label: "Fransa", Country: "Fransa"},
	})

	label, ok := l.Label("Q83286")
	assert.True(t, ok)
	assert.Equal(t, "Amed", label)

	qualified, ok := l.Qualified("Q83286")
	assert.True(t, ok)
	assert.Equal(t, "Tirkiye (Amed)", qualified)

	qualified, ok = l.Qualified("Q142")
	assert.True(t, ok)
	assert.Equal(t, "Fransa", qualified)

	_, ok = l.Label("Q90")
	assert.False(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestNilMaps(t *testing.T) {
	var l *Languages
	var loc *Locations

	_, ok := l.Code("Q1")
	assert.False(t, ok)
	_, ok = loc.Qualified("Q1")
	assert.False(t, ok)
	assert.Zero(t, l.Len())
	assert.Zero(t, loc.Len())
	assert.Empty(t, l.Snapshot())
}

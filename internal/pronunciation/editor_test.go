package pronunciation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llbot/internal/cache"
	"llbot/internal/wiki"
	"llbot/internal/wikitext"
)

const (
	kurdish = "Q36368"
	english = "Q1860"
	amed    = "Q83286"
	paris   = "Q90"
	france  = "Q142"
)

func newTestEditor(t *testing.T) *Editor {
	t.Helper()
	w, err := wiki.Lookup("kuwiktionary")
	require.NoError(t, err)

	languages := cache.NewLanguages(map[string]string{kurdish: "ku", english: "en"})
	locations := cache.NewLocations(map[string]cache.Location{
		amed:   {Label: "Amed", Country: "Tirkiye"},
		paris:  {Label: "Parîs", Country: "Fransa"},
		france: {Label: "Fransa", Country: "Fransa"},
	})
	return NewEditor(w, languages, locations)
}

func TestFindLanguageSection(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("== {{ziman|en}} ==\nx\n== {{ Ziman | KU }} ==\ny\n")

	id, err := e.FindLanguageSection(doc, kurdish)
	require.NoError(t, err)
	assert.Equal(t, doc.TopLevel()[1], id)

	_, err = e.FindLanguageSection(doc, "Q9999")
	assert.ErrorIs(t, err, ErrLanguageNotMapped)

	_, err = e.FindLanguageSection(wikitext.Parse("== {{ziman|de}} ==\n"), english)
	assert.ErrorIs(t, err, ErrLanguageSectionNotFound)
	assert.NotErrorIs(t, err, ErrLanguageNotMapped)
}

func TestFindLanguageSection_OnlyTopLevel(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("== {{ziman|en}} ==\n=== {{ziman|ku}} ===\n")

	_, err := e.FindLanguageSection(doc, kurdish)
	assert.ErrorIs(t, err, ErrLanguageSectionNotFound)
}

func TestFindPronunciationSection(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==\n=== Navdêr ===\n=== bilêv kirin ===\n==== Bilêvkirin ====\n")
	lang := doc.TopLevel()[0]

	pron, ok := e.FindPronunciationSection(doc, lang)
	require.True(t, ok)
	assert.Equal(t, doc.Section(lang).Children[1], pron, "whitespace inside the title is ignored")

	doc = wikitext.Parse("=={{ziman|ku}}==\n=== Navdêr ===\n==== Bilêvkirin ====\n")
	_, ok = e.FindPronunciationSection(doc, doc.TopLevel()[0])
	assert.False(t, ok, "only immediate children count")
}

func TestCreatePronunciationSection_NoSubsections(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==\n'''porbirr'''\n")
	lang := doc.TopLevel()[0]

	pron, err := e.CreatePronunciationSection(doc, lang)
	require.NoError(t, err)

	assert.Equal(t, doc.Section(lang).Children[0], pron)
	assert.Equal(t, 3, doc.Section(pron).Level)
	assert.Equal(t, "=={{ziman|ku}}==\n'''porbirr'''\n\n=== Bilêvkirin ===\n$1", doc.String())
}

func TestCreatePronunciationSection_EmptyBody(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==")
	lang := doc.TopLevel()[0]

	_, err := e.CreatePronunciationSection(doc, lang)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc.String(), "=={{ziman|ku}}==\n\n=== Bilêvkirin ===\n"),
		"exactly one blank line between the language heading and the new heading")
}

func TestCreatePronunciationSection_WithSubsections(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==\n=== Navdêr ===\n'''porbirr'''\n")
	lang := doc.TopLevel()[0]

	pron, err := e.CreatePronunciationSection(doc, lang)
	require.NoError(t, err)

	children := doc.Section(lang).Children
	require.Len(t, children, 2)
	assert.Equal(t, children[0], pron)
	assert.Equal(t, "=={{ziman|ku}}==\n=== Bilêvkirin ===\n$1=== Navdêr ===\n'''porbirr'''\n", doc.String())
}

func TestCreatePronunciationSection_NestedLevel(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("= {{ziman|ku}} =\n")

	pron, err := e.CreatePronunciationSection(doc, doc.TopLevel()[0])
	require.NoError(t, err)
	assert.Equal(t, "== Bilêvkirin ==\n", doc.Section(pron).Heading)
}

func TestLocationLabel(t *testing.T) {
	e := newTestEditor(t)

	tests := []struct {
		name     string
		language string
		location string
		want     string
	}{
		{"native language uses bare label", kurdish, amed, "Amed"},
		{"other language qualifies with country", english, amed, "Tirkiye (Amed)"},
		{"country equal to location has no parenthetical", english, france, "Fransa"},
		{"unknown location is empty", english, "Q1", ""},
		{"no location is empty", kurdish, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.LocationLabel(tt.language, tt.location))
		})
	}
}

func TestAppendAudioLine_ExistingSection(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==\n=== Bilêvkirin ===\n* {{deng|ku|Old.wav|Deng|dever=}}\n\n=== Navdêr ===\nx\n")
	lang := doc.TopLevel()[0]
	pron, ok := e.FindPronunciationSection(doc, lang)
	require.True(t, ok)

	require.NoError(t, e.AppendAudioLine(doc, pron, Edit{File: "New.wav", Language: kurdish, Location: amed}))

	assert.Equal(t,
		"=={{ziman|ku}}==\n=== Bilêvkirin ===\n* {{deng|ku|Old.wav|Deng|dever=}}\n* {{deng|ku|New.wav|Deng|dever=Amed}}\n\n=== Navdêr ===\nx\n",
		doc.String())
	assert.Empty(t, doc.Section(pron).Children, "audio lines are body text, never subsections")
}

func TestAppendAudioLine_LastSection(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|en}}==\n=== Bilêvkirin ===")
	pron, ok := e.FindPronunciationSection(doc, doc.TopLevel()[0])
	require.True(t, ok)

	require.NoError(t, e.AppendAudioLine(doc, pron, Edit{File: "A.wav", Language: english, Location: paris}))

	assert.Equal(t, "=={{ziman|en}}==\n=== Bilêvkirin ===\n* {{deng|en|A.wav|Deng|dever=Fransa (Parîs)}}\n", doc.String())
}

func TestAppendAudioLine_Unmapped(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=== Bilêvkirin ===\n")

	err := e.AppendAudioLine(doc, doc.TopLevel()[0], Edit{File: "A.wav", Language: "Q9999"})
	assert.ErrorIs(t, err, ErrLanguageNotMapped)
	assert.Equal(t, "=== Bilêvkirin ===\n", doc.String())
}

func TestClean_Idempotent(t *testing.T) {
	e := newTestEditor(t)

	inputs := []string{
		"$1\n* {{deng|ku|A.wav|Deng|dever=}}\n\n\n",
		"* {{deng|ku|A.wav|Deng|dever=}}\n",
		"$1",
		"",
		"a\n\n\n\n\n",
	}
	for _, in := range inputs {
		once := e.Clean(in)
		assert.Equal(t, once, e.Clean(once), in)
		assert.False(t, strings.HasPrefix(once, "$1\n"), in)
	}

	assert.Equal(t, "* {{deng|ku|A.wav|Deng|dever=}}\n\n", e.Clean(inputs[0]))
	assert.Equal(t, "{{x|$1\n}}\n", e.Clean("{{x|$1\n}}\n"))
}

func TestAppendAudioLine_KeepsPlaceholderText(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==\n=== Bilêvkirin ===\n{{x|$1\n}}\n\n=== Navdêr ===\nx\n")
	pron, ok := e.FindPronunciationSection(doc, doc.TopLevel()[0])
	require.True(t, ok)

	require.NoError(t, e.AppendAudioLine(doc, pron, Edit{File: "New.wav", Language: kurdish, Location: amed}))

	assert.Equal(t,
		"=={{ziman|ku}}==\n=== Bilêvkirin ===\n{{x|$1\n}}\n* {{deng|ku|New.wav|Deng|dever=Amed}}\n\n=== Navdêr ===\nx\n",
		doc.String())
}

func TestApply_CreatesSection(t *testing.T) {
	e := newTestEditor(t)
	page := "{{wêne|x.jpg}}\n=={{ziman|ku}}==\n'''gûz'''\n\n=={{ziman|en}}==\n=== Navdêr ===\nnut\n"
	doc := wikitext.Parse(page)

	require.NoError(t, e.Apply(doc, Edit{File: "Audio-ku.wav", Language: kurdish, Location: amed}))

	want := "{{wêne|x.jpg}}\n=={{ziman|ku}}==\n'''gûz'''\n\n=== Bilêvkirin ===\n* {{deng|ku|Audio-ku.wav|Deng|dever=Amed}}\n\n=={{ziman|en}}==\n=== Navdêr ===\nnut\n"
	out := doc.String()
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "$1")
	assert.Equal(t, 1, strings.Count(out, "Audio-ku.wav"))
}

func TestApply_BeforeExistingSubsections(t *testing.T) {
	e := newTestEditor(t)
	doc := wikitext.Parse("=={{ziman|ku}}==\n\n=== Navdêr ===\n'''gûz'''\n")

	require.NoError(t, e.Apply(doc, Edit{File: "Audio-ku.wav", Language: kurdish}))

	assert.Equal(t,
		"=={{ziman|ku}}==\n\n=== Bilêvkirin ===\n* {{deng|ku|Audio-ku.wav|Deng|dever=}}\n\n=== Navdêr ===\n'''gûz'''\n",
		doc.String())
}

func TestApply_Errors(t *testing.T) {
	e := newTestEditor(t)

	page := "=={{ziman|en}}==\nnut\n"
	doc := wikitext.Parse(page)
	err := e.Apply(doc, Edit{File: "A.wav", Language: kurdish})
	assert.ErrorIs(t, err, ErrLanguageSectionNotFound)
	assert.Equal(t, page, doc.String(), "failed lookups leave the page untouched")

	err = e.Apply(doc, Edit{File: "A.wav", Language: "Q9999"})
	assert.ErrorIs(t, err, ErrLanguageNotMapped)
}

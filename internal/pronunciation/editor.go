// Package pronunciation edits the pronunciation subsection of a language
// entry: it finds the language section, finds or creates the subsection
// and appends a rendered audio line to it.
package pronunciation

import (
	"errors"
	"fmt"
	"strings"

	"llbot/internal/cache"
	"llbot/internal/wiki"
	"llbot/internal/wikitext"
)

var (
	// ErrLanguageNotMapped means the record's language has no code.
	ErrLanguageNotMapped = errors.New("language not mapped")
	// ErrLanguageSectionNotFound means the page has no section for the
	// record's language.
	ErrLanguageSectionNotFound = errors.New("language section not found")
)

// Editor applies pronunciation edits for one wiki.
type Editor struct {
	wiki      wiki.Wiki
	languages *cache.Languages
	locations *cache.Locations
}

// NewEditor creates an editor. The caches are only read.
func NewEditor(w wiki.Wiki, languages *cache.Languages, locations *cache.Locations) *Editor {
	return &Editor{
		wiki:      w,
		languages: languages,
		locations: locations,
	}
}

// Edit is the input of a single pronunciation edit.
type Edit struct {
	File     string
	Language string // language qid
	Location string // location qid, may be empty
}

// Apply runs the whole edit on doc: locate, resolve or create, compose.
func (e *Editor) Apply(doc *wikitext.Document, edit Edit) error {
	lang, err := e.FindLanguageSection(doc, edit.Language)
	if err != nil {
		return err
	}

	pron, ok := e.FindPronunciationSection(doc, lang)
	if !ok {
		if pron, err = e.CreatePronunciationSection(doc, lang); err != nil {
			return err
		}
	}

	return e.AppendAudioLine(doc, pron, edit)
}

// FindLanguageSection returns the top-level section whose title matches
// the language heading of languageQID.
func (e *Editor) FindLanguageSection(doc *wikitext.Document, languageQID string) (wikitext.SectionID, error) {
	code, ok := e.languages.Code(languageQID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrLanguageNotMapped, languageQID)
	}

	want := e.wiki.LanguageTitle(code)
	for _, id := range doc.TopLevel() {
		if wikitext.NormalizeTitle(doc.Section(id).Title) == want {
			return id, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrLanguageSectionNotFound, want)
}

// FindPronunciationSection returns the first immediate child of lang titled
// as the pronunciation subsection.
func (e *Editor) FindPronunciationSection(doc *wikitext.Document, lang wikitext.SectionID) (wikitext.SectionID, bool) {
	want := e.wiki.PronunciationTitle()
	for _, id := range doc.Section(lang).Children {
		if wikitext.NormalizeTitle(doc.Section(id).Title) == want {
			return id, true
		}
	}
	return 0, false
}

// CreatePronunciationSection inserts an empty pronunciation subsection as
// the first child of lang. When lang has no subsections yet, a blank line
// separates the new heading from the language body.
func (e *Editor) CreatePronunciationSection(doc *wikitext.Document, lang wikitext.SectionID) (wikitext.SectionID, error) {
	s := doc.Section(lang)
	s.Heading = terminateLine(s.Heading)

	if len(s.Children) == 0 {
		if core := strings.TrimRight(s.Body, "\n"); core == "" {
			s.Body = "\n"
		} else {
			s.Body = core + "\n\n"
		}
	} else {
		s.Body = terminateLine(s.Body)
	}

	heading := e.wiki.PronunciationHeading(s.Level + 1)
	// The placeholder keeps the body non-empty until a line lands in it.
	doc.InsertChild(lang, 0, wikitext.Section{
		Title:   strings.Trim(strings.TrimSpace(heading), "="),
		Level:   s.Level + 1,
		Heading: heading,
		Body:    e.wiki.Placeholder,
	})

	pron, ok := e.FindPronunciationSection(doc, lang)
	if !ok {
		return 0, fmt.Errorf("create pronunciation section: %q not found after insert", e.wiki.PronunciationLabel)
	}
	return pron, nil
}

// AppendAudioLine renders the audio line for edit and appends it to the body
// of pron, never as a subsection.
func (e *Editor) AppendAudioLine(doc *wikitext.Document, pron wikitext.SectionID, edit Edit) error {
	code, ok := e.languages.Code(edit.Language)
	if !ok {
		return fmt.Errorf("%w: %s", ErrLanguageNotMapped, edit.Language)
	}

	line := "\n" + e.wiki.RenderLine(edit.File, code, e.LocationLabel(edit.Language, edit.Location)) + "\n"
	if doc.Follows(pron) {
		line += "\n\n"
	}

	s := doc.Section(pron)
	s.Heading = terminateLine(s.Heading)

	core := strings.TrimRight(s.Body, "\n")
	if core == "" {
		line = line[1:]
	}
	s.Body = e.Clean(core + line)

	return nil
}

// LocationLabel picks the label shown next to the audio file. Records in the
// wiki's own language get the bare location label; others get the country,
// qualified by the location when it differs.
func (e *Editor) LocationLabel(languageQID, locationQID string) string {
	if locationQID == "" {
		return ""
	}
	if languageQID == e.wiki.NativeLanguage {
		if label, ok := e.locations.Label(locationQID); ok {
			return label
		}
	}
	if label, ok := e.locations.Qualified(locationQID); ok {
		return label
	}
	return ""
}

// Clean removes the placeholder seeded by CreatePronunciationSection and
// collapses the trailing newline run to a single blank line. The placeholder
// is only stripped as the leading line of the body; anywhere else it is page
// content. Running it twice changes nothing.
func (e *Editor) Clean(body string) string {
	if e.wiki.Placeholder != "" {
		body = strings.TrimPrefix(body, e.wiki.Placeholder+"\n")
	}

	core := strings.TrimRight(body, "\n")
	if len(body)-len(core) > 2 {
		body = core + "\n\n"
	}
	return body
}

func terminateLine(s string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		return s + "\n"
	}
	return s
}

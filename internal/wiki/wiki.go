// Package wiki holds the per-wiki strings that drive the pronunciation
// editor. Every wiki runs the same pipeline; only this table differs.
package wiki

import (
	"fmt"
	"sort"
	"strings"

	"llbot/internal/wikitext"
)

// Wiki describes one target wiki.
type Wiki struct {
	// Name is the identifier used on the command line (e.g. "kuwiktionary").
	Name string
	// Language is the wiki's own language code, used in the API host name.
	Language string
	// Family is the wiki family domain (e.g. "wiktionary").
	Family string
	// NativeLanguage is the Wikidata qid of the wiki's own language.
	NativeLanguage string

	// LanguageHeading is a fmt pattern taking the language code; it is
	// compared against whitespace-stripped, lowercased section titles.
	LanguageHeading string
	// PronunciationLabel is the displayed title of the pronunciation
	// subsection.
	PronunciationLabel string
	// Placeholder seeds the body of a freshly created subsection and is
	// removed before the page is written.
	Placeholder string
	// LineTemplate renders the audio line. $1 is the file name, $2 the
	// language code and $3 the location label.
	LineTemplate string
	// Summary is the edit summary.
	Summary string

	// LanguageQuery maps language qids to codes (?item, ?code).
	LanguageQuery string
	// LocationQuery labels locations; $1 receives the VALUES list.
	LocationQuery string
}

// APIEndpoint returns the Action API URL of the wiki.
func (w Wiki) APIEndpoint() string {
	return fmt.Sprintf("https://%s.%s.org/w/api.php", w.Language, w.Family)
}

// PageURL returns the public URL of a page.
func (w Wiki) PageURL(title string) string {
	return fmt.Sprintf("https://%s.%s.org/wiki/%s", w.Language, w.Family, strings.ReplaceAll(title, " ", "_"))
}

// LanguageTitle returns the normalized language section title for code.
func (w Wiki) LanguageTitle(code string) string {
	return fmt.Sprintf(w.LanguageHeading, strings.ToLower(code))
}

// PronunciationTitle returns the normalized pronunciation subsection title.
func (w Wiki) PronunciationTitle() string {
	return wikitext.NormalizeTitle(w.PronunciationLabel)
}

// PronunciationHeading returns the heading line, newline included, for a
// pronunciation subsection at the given level.
func (w Wiki) PronunciationHeading(level int) string {
	markers := strings.Repeat("=", level)
	return markers + " " + w.PronunciationLabel + " " + markers + "\n"
}

// RenderLine fills the line template.
func (w Wiki) RenderLine(file, code, label string) string {
	return strings.NewReplacer("$1", file, "$2", code, "$3", label).Replace(w.LineTemplate)
}

// RenderLocationQuery fills the location query with the given qids.
func (w Wiki) RenderLocationQuery(qids []string) string {
	values := make([]string, len(qids))
	for i, q := range qids {
		values[i] = "wd:" + q
	}
	return strings.ReplaceAll(w.LocationQuery, "$1", strings.Join(values, " "))
}

const (
	languageQuery = "SELECT ?item ?code WHERE { ?item wdt:P305 ?code. }"

	locationQuery = `
SELECT ?location ?locationLabel ?countryLabel
WHERE {
  ?location wdt:P17 ?country.
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s" . }
  VALUES ?location { $1 }
}
`
)

var registry = map[string]Wiki{
	"kuwiktionary": {
		Name:               "kuwiktionary",
		Language:           "ku",
		Family:             "wiktionary",
		NativeLanguage:     "Q36368",
		LanguageHeading:    "{{ziman|%s}}",
		PronunciationLabel: "Bilêvkirin",
		Placeholder:        "$1",
		LineTemplate:       "* {{deng|$2|$1|Deng|dever=$3}}",
		Summary:            "Dengê bilêvkirinê ji Lingua Libre lê hat zêdekirin",
		LanguageQuery:      languageQuery,
		LocationQuery:      fmt.Sprintf(locationQuery, "ku,en"),
	},
}

// Lookup returns the configuration registered under name.
func Lookup(name string) (Wiki, error) {
	w, ok := registry[name]
	if !ok {
		return Wiki{}, fmt.Errorf("unknown wiki %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return w, nil
}

// Names lists the registered wikis in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

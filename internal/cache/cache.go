package cache

import "maps"

// Languages maps Wikidata language qids to the codes used by the audio
// template. It is built once per run and never written afterwards, so it is
// safe for concurrent reads.
type Languages struct {
	codes map[string]string
}

// NewLanguages copies codes into a read-only map.
func NewLanguages(codes map[string]string) *Languages {
	return &Languages{codes: maps.Clone(codes)}
}

// Code returns the language code for qid.
func (l *Languages) Code(qid string) (string, bool) {
	if l == nil {
		return "", false
	}
	code, ok := l.codes[qid]
	return code, ok
}

// Len returns the number of mapped languages.
func (l *Languages) Len() int {
	if l == nil {
		return 0
	}
	return len(l.codes)
}

// Snapshot returns a copy of the mapping.
func (l *Languages) Snapshot() map[string]string {
	if l == nil {
		return map[string]string{}
	}
	return maps.Clone(l.codes)
}

// Location is one row of the location-label source.
type Location struct {
	Label   string
	Country string
}

// Locations holds the two label renderings of every location referenced by
// the current batch.
type Locations struct {
	bare      map[string]string // qid → location label
	qualified map[string]string // qid → "Country (Location)" or "Country"
}

// NewLocations builds both renderings from the raw rows.
func NewLocations(rows map[string]Location) *Locations {
	l := &Locations{
		bare:      make(map[string]string, len(rows)),
		qualified: make(map[string]string, len(rows)),
	}
	for qid, row := range rows {
		l.bare[qid] = row.Label
		qualified := row.Country
		if row.Country != row.Label {
			qualified += " (" + row.Label + ")"
		}
		l.qualified[qid] = qualified
	}
	return l
}

// Label returns the bare location label.
func (l *Locations) Label(qid string) (string, bool) {
	if l == nil {
		return "", false
	}
	label, ok := l.bare[qid]
	return label, ok
}

// Qualified returns the country label, suffixed with the location label when
// the two differ.
func (l *Locations) Qualified(qid string) (string, bool) {
	if l == nil {
		return "", false
	}
	label, ok := l.qualified[qid]
	return label, ok
}

// Len returns the number of labelled locations.
func (l *Locations) Len() int {
	if l == nil {
		return 0
	}
	return len(l.bare)
}

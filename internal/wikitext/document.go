package wikitext

import (
	"strings"
	"unicode"
)

// maxHeadingLevel is the deepest heading MediaWiki renders (======).
const maxHeadingLevel = 6

// SectionID indexes a section inside its Document.
type SectionID int

// Root is the implicit lead section that precedes the first heading.
const Root SectionID = 0

// Section is one heading-delimited region of a page.
type Section struct {
	// Title is the raw text between the heading markers. Empty for Root.
	Title string
	// Level is the heading depth; 0 for Root.
	Level int
	// Heading is the raw heading line, including its terminating newline.
	Heading string
	// Body is the text between the heading line and the first child heading.
	Body string
	// Children are the subsections, in page order.
	Children []SectionID
}

// Document is a page split into a tree of sections. Sections live in a flat
// arena and refer to their children by index, so there are no parent links.
type Document struct {
	sections []Section
}

// Parse splits text into sections. It never fails: text without headings
// yields a Document holding only Root.
func Parse(text string) *Document {
	doc := &Document{sections: []Section{{}}}
	stack := []SectionID{Root}
	current := Root
	bodyStart := 0

	for pos := 0; pos < len(text); {
		next := len(text)
		if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
			next = pos + i + 1
		}
		line := text[pos:next]

		if level, title, ok := parseHeading(line); ok {
			doc.sections[current].Body = text[bodyStart:pos]

			for doc.sections[stack[len(stack)-1]].Level >= level {
				stack = stack[:len(stack)-1]
			}
			parent := stack[len(stack)-1]

			id := doc.add(Section{Title: title, Level: level, Heading: line})
			doc.sections[parent].Children = append(doc.sections[parent].Children, id)
			stack = append(stack, id)
			current = id
			bodyStart = next
		}
		pos = next
	}
	doc.sections[current].Body = text[bodyStart:]

	return doc
}

// parseHeading recognises a "== Title ==" line. Unbalanced markers resolve to
// the shorter run, the surplus '=' staying in the title as MediaWiki does.
func parseHeading(line string) (int, string, bool) {
	s := strings.TrimRight(line, "\r\n")
	s = strings.TrimRight(s, " \t")
	if len(s) < 3 || s[0] != '=' || s[len(s)-1] != '=' {
		return 0, "", false
	}

	lead := len(s) - len(strings.TrimLeft(s, "="))
	trail := len(s) - len(strings.TrimRight(s, "="))
	level := min(lead, trail, maxHeadingLevel)
	if 2*level >= len(s) {
		level = (len(s) - 1) / 2
	}
	if level < 1 {
		return 0, "", false
	}

	return level, s[level : len(s)-level], true
}

func (d *Document) add(s Section) SectionID {
	d.sections = append(d.sections, s)
	return SectionID(len(d.sections) - 1)
}

// Section returns the section with the given id. The pointer stays valid
// until the next InsertChild call.
func (d *Document) Section(id SectionID) *Section {
	return &d.sections[id]
}

// TopLevel returns the sections directly under Root.
func (d *Document) TopLevel() []SectionID {
	return d.sections[Root].Children
}

// InsertChild adds s as the index-th child of parent and returns its id.
// An index past the end appends.
func (d *Document) InsertChild(parent SectionID, index int, s Section) SectionID {
	id := d.add(s)
	children := d.sections[parent].Children
	index = max(0, min(index, len(children)))

	children = append(children, 0)
	copy(children[index+1:], children[index:])
	children[index] = id
	d.sections[parent].Children = children

	return id
}

// Order lists every section in page order, Root first.
func (d *Document) Order() []SectionID {
	order := make([]SectionID, 0, len(d.sections))
	var walk func(id SectionID)
	walk = func(id SectionID) {
		order = append(order, id)
		for _, child := range d.sections[id].Children {
			walk(child)
		}
	}
	walk(Root)
	return order
}

// Follows reports whether any heading comes after the body of id.
func (d *Document) Follows(id SectionID) bool {
	order := d.Order()
	return order[len(order)-1] != id
}

// String serializes the document. An unmodified Document reproduces the
// parsed text byte for byte.
func (d *Document) String() string {
	var sb strings.Builder
	d.write(&sb, Root)
	return sb.String()
}

// SectionString serializes one section together with its subsections.
func (d *Document) SectionString(id SectionID) string {
	var sb strings.Builder
	d.write(&sb, id)
	return sb.String()
}

func (d *Document) write(sb *strings.Builder, id SectionID) {
	s := &d.sections[id]
	sb.WriteString(s.Heading)
	sb.WriteString(s.Body)
	for _, child := range s.Children {
		d.write(sb, child)
	}
}

// NormalizeTitle drops every whitespace rune and lowercases the rest, so
// "{{ziman | KU}}" and "{{ziman|ku}}" compare equal.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, title))
}

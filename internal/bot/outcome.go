package bot

import (
	"errors"
	"strings"

	"llbot/internal/mediawiki"
)

var (
	// ErrTooManyConflicts means every allowed attempt hit an edit conflict.
	ErrTooManyConflicts = errors.New("too many edit conflicts")
	// ErrNotPrepared means Execute was called before Prepare.
	ErrNotPrepared = errors.New("bot not prepared")
)

// Outcome is how a record ended.
type Outcome int

// Failed is the zero value; every other outcome is a completed record.
const (
	Failed Outcome = iota
	Added
	AlreadyPresent
	PageNotFound
	LanguageNotMapped
	LanguageSectionNotFound
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	case PageNotFound:
		return "page_not_found"
	case LanguageNotMapped:
		return "language_not_mapped"
	case LanguageSectionNotFound:
		return "language_section_not_found"
	default:
		return "failed"
	}
}

// Result reports one processed record.
type Result struct {
	Outcome Outcome
	// Attempts counts fetch-edit-write cycles, conflicts included.
	Attempts int
}

// IsEditConflict reports whether err is a write rejected for a stale base
// revision.
func IsEditConflict(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, mediawiki.ErrEditConflict) || strings.Contains(err.Error(), "editconflict")
}

// FileReferenced reports whether text already references file, in either
// its space or underscore spelling.
func FileReferenced(text, file string) bool {
	if file == "" {
		return false
	}
	return strings.Contains(text, file) ||
		strings.Contains(text, strings.ReplaceAll(file, " ", "_")) ||
		strings.Contains(text, strings.ReplaceAll(file, "_", " "))
}

package mediawiki

import (
	"errors"
	"fmt"
)

// ErrEditConflict marks an edit rejected because the page changed after it
// was fetched.
var ErrEditConflict = errors.New("editconflict")

// APIError is an error object returned by the Action API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%s]: %s", e.Code, e.Info)
}

// Is matches ErrEditConflict for the editconflict and pagedeleted codes.
// Both mean the fetched copy is stale and a fresh fetch decides what to do.
func (e *APIError) Is(target error) bool {
	return target == ErrEditConflict && (e.Code == "editconflict" || e.Code == "pagedeleted")
}

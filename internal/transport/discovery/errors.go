package discovery

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// transientMarkers is the substring vocabulary for retryable control-plane
// errors.
var transientMarkers = []string{
	"unavailable",
	"deadline",
	"timeout",
	"connection",
	"503",
	"500",
}

// importRetryMarkers extends the vocabulary for imports: a just-uploaded
// object or just-created data store may not be visible yet, so not-found
// reads as "not yet" in this specific context.
var importRetryMarkers = []string{
	"not found",
	"does not exist",
}

// isTransient reports whether an error is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= http.StatusInternalServerError ||
			gerr.Code == http.StatusTooManyRequests
	}
	return matchesAny(err, transientMarkers)
}

// isImportRetryable widens isTransient with the propagation-delay vocabulary.
func isImportRetryable(err error) bool {
	if err == nil {
		return false
	}
	if isTransient(err) || isNotFound(err) {
		return true
	}
	return matchesAny(err, importRetryMarkers)
}

func matchesAny(err error, markers []string) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isNotFound reports a 404 API response.
func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// isAlreadyExists reports a 409 API response (creation race).
func isAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

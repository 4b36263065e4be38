package gcs

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// transientMarkers is the substring vocabulary for retryable storage errors.
var transientMarkers = []string{
	"unavailable",
	"deadline",
	"timeout",
	"connection",
	"503",
	"500",
}

// isTransient reports whether an error is worth retrying: a 5xx/429 API
// response or a message matching the transient vocabulary.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= http.StatusInternalServerError ||
			gerr.Code == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
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

// isConflict reports a 409 API response (creation race).
func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

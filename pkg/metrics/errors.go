package metrics

import (
	"errors"
)

// ErrorType returns a low-cardinality label for err: the first matching
// sentinel's text, or "other".
func ErrorType(err error, kinds ...error) string {
	if err == nil {
		return "none"
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "other"
}

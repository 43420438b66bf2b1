package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrIncompleteAnswers = errors.New("incomplete answers")
)

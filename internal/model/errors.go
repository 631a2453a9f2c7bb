package model

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/errors"
)

// TranslationError reports a source entity that could not be mapped to a
// target document.
type TranslationError struct {
	SourceID string
	Message  string
}

// NewTranslationError builds a TranslationError for the given source id.
func NewTranslationError(sourceID string, format string, args ...any) *TranslationError {
	return &TranslationError{SourceID: sourceID, Message: fmt.Sprintf(format, args...)}
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translating %s: %s", e.SourceID, e.Message)
}

func (e *TranslationError) Unwrap() error {
	return apperrors.ErrTranslation
}

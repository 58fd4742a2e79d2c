package upload

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errInvalidContentType = errors.New("unsupported content type")
	errInvalidUploadType  = errors.New("unsupported upload type")
	errMissingWallet      = errors.New("user wallet required")
	errEmptyFile          = errors.New("empty file")
)

// allowedContentTypes and allowedUploadTypes are fixed by the intake
// contract, not configuration.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":       {},
	"image/png":        {},
	"application/pdf":  {},
	"text/csv":         {},
	"application/json": {},
}

var allowedUploadTypes = map[string]struct{}{
	"sustainability_document": {},
	"carbon_footprint":        {},
	"certification":           {},
	"proof_of_impact":         {},
}

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(req Request) error {
	contentType := normalizeContentType(req.ContentType)
	if contentType == "" {
		return ValidationError{reason: fmt.Errorf("content type required: %w", errInvalidContentType)}
	}
	if _, ok := allowedContentTypes[contentType]; !ok {
		return ValidationError{reason: fmt.Errorf("content type '%s' not supported: %w", contentType, errInvalidContentType)}
	}

	uploadType := strings.TrimSpace(strings.ToLower(req.UploadType))
	if uploadType == "" {
		return ValidationError{reason: fmt.Errorf("upload type required: %w", errInvalidUploadType)}
	}
	if _, ok := allowedUploadTypes[uploadType]; !ok {
		return ValidationError{reason: fmt.Errorf("upload type '%s' not supported: %w", uploadType, errInvalidUploadType)}
	}

	if strings.TrimSpace(req.UserWallet) == "" {
		return ValidationError{reason: errMissingWallet}
	}

	if len(req.Content) == 0 {
		return ValidationError{reason: errEmptyFile}
	}

	return nil
}

// normalizeContentType lowercases the media type and strips any parameters,
// so "application/JSON; charset=utf-8" validates like "application/json".
func normalizeContentType(contentType string) string {
	normalized := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	return normalized
}

package validator

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

var (
	ErrInvalidReference      = errors.New("reference must be at most 255 characters")
	ErrInvalidIdempotencyKey = errors.New("idempotency key must be 1-128 characters of letters, digits, '-', '_', ':' or '.'")
	ErrInvalidClientName     = errors.New("client name must be 3-64 characters of letters, digits, '-' or '_'")
)

const maxReferenceLength = 255

var (
	idempotencyKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)
	clientNameRegex     = regexp.MustCompile(`^[a-zA-Z0-9_\-]{3,64}$`)
)

func ValidateReference(reference *string) error {
	if reference != nil && utf8.RuneCountInString(*reference) > maxReferenceLength {
		return ErrInvalidReference
	}
	return nil
}

func ValidateIdempotencyKey(key string) error {
	if !idempotencyKeyRegex.MatchString(key) {
		return ErrInvalidIdempotencyKey
	}
	return nil
}

func ValidateClientName(name string) error {
	if !clientNameRegex.MatchString(name) {
		return ErrInvalidClientName
	}
	return nil
}

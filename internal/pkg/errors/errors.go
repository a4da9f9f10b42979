package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	ErrPlanExceeded = errors.New("plan limit exceeded")

	// Pipeline taxonomy. Extraction and embedding failures abort a single
	// document or page; fetch and persist failures are recorded on the page
	// row and never abort the surrounding batch.
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoExtractableText = errors.New("no extractable text")
	ErrEmbedding         = errors.New("embedding service error")
	ErrFetch             = errors.New("fetch error")
	ErrPersist           = errors.New("persist error")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsPlanExceeded(err error) bool {
	return errors.Is(err, ErrPlanExceeded)
}

package pdf2image

import "errors"

// Domain errors raised by the converter. All are returned wrapped with
// context and can be matched with errors.Is.
var (
	// ErrDocumentNotFound is returned when the source is neither a readable
	// local file nor a fetchable URL
	ErrDocumentNotFound = errors.New("document does not exist")

	// ErrInvalidFormat is returned for output formats outside jpg, jpeg and png
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrPageDoesNotExist is returned when a requested page is outside the document
	ErrPageDoesNotExist = errors.New("page does not exist")
)

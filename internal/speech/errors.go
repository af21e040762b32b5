package speech

import "errors"

// Client-error sentinels. The HTTP layer maps these to 400 responses;
// everything else surfaced by the Service is a server error.
var (
	// ErrTextEmpty indicates a synthesis request without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrMissingFileField indicates an upload without a "file" file field.
	ErrMissingFileField = errors.New("missing file in the request")
	// ErrEmptyFileContent indicates an upload whose file payload is empty.
	ErrEmptyFileContent = errors.New("file content is empty")
)

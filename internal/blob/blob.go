// Package blob stores generated files (loan statements) and returns a URL
// the invoice document can reference.
package blob

import "context"

// Uploader is the outbound port for file storage.
type Uploader interface {
	// Upload stores content under name and returns its URL.
	Upload(ctx context.Context, name, contentType string, content []byte) (string, error)
}

// Package artifacts stores per-request audio renderings and hands back
// addressable references. Artifacts are created on write and never
// auto-deleted; names are made collision-resistant so concurrent calls
// with the same call identifier cannot overwrite each other.
package artifacts

import "context"

// Ref points at a stored audio artifact.
type Ref struct {
	// Name is the storage key (file name or object key).
	Name string
	// URL is where the artifact can be fetched. For the filesystem
	// store this is a server-relative path (e.g. /static/abc.wav); for
	// S3 it is the public object URL.
	URL string
}

// Store persists audio artifacts. Implementations must be safe for
// concurrent use by independent requests.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (Ref, error)
}

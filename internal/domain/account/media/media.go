package media

import (
	"context"
	"io"
)

// Upload is a single inbound media file, as handed over by the transport
// layer after multipart parsing.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store is the remote media-hosting service the account core depends on.
// Upload returns the public URL of the stored object; Delete takes that
// same URL back.
type Store interface {
	Upload(ctx context.Context, key string, up Upload) (string, error)

	Delete(ctx context.Context, url string) error
}

package services

import (
	"context"
	"io"
)

// Requester is the subset of [Client] the resource services depend on.
type Requester interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
	UploadFile(ctx context.Context, path, fieldName, filename string, r io.Reader, out any) error
	PublicPost(ctx context.Context, path string, body, out any) error
}

var _ Requester = (*Client)(nil)

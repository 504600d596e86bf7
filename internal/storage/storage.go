package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ObjectStore is the file backend behind file-format notes. The production
// implementation is MinIO; tests substitute an in-memory store.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
}

// NoteObjectName builds the object key for a file note's payload.
func NoteObjectName(groupID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s", groupID.String(), filename)
}

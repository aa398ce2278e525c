package port

import (
	"context"
	"io"

	"github.com/garyjia/staff-approvals/internal/domain/entity"
)

// FileStorage defines file storage operations for uploaded documents
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// FormRenderer writes an approval form for a fully approved request
type FormRenderer interface {
	Render(ctx context.Context, req *entity.Request, w io.Writer) error
	ContentType() string
	Extension() string
}

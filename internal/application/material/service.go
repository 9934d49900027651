package material

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/studyshare-api/internal/domain"
	s3infra "github.com/studyshare-api/internal/infrastructure/s3"
	"github.com/studyshare-api/internal/pkg/id"
)

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	Title       string
	Subject     string
	Description string
	IsPrivate   bool
	OwnerID     string
}

type Service interface {
	Upload(ctx context.Context, input UploadInput) (*domain.Material, error)
	Get(ctx context.Context, materialID, requesterID string, isAdmin bool) (*domain.Material, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Material, error)
	Download(ctx context.Context, materialID, requesterID string, isAdmin bool) (*s3infra.Object, *domain.Material, error)
	Delete(ctx context.Context, materialID, requesterID string, isAdmin bool) error
}

type materialStore interface {
	Put(ctx context.Context, m *domain.Material) error
	Get(ctx context.Context, materialID string) (*domain.Material, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Material, error)
	Delete(ctx context.Context, materialID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) (*s3infra.Object, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	repo    materialStore
	objects objectStore
}

func NewService(repo materialStore, objects objectStore) Service {
	return &service{repo: repo, objects: objects}
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*domain.Material, error) {
	safeName := sanitizeFilename(input.Filename)
	contentType := input.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = s3infra.DetectContentType(safeName)
	}
	materialID := id.New()
	key := fmt.Sprintf("materials/%s/%s/%s", input.OwnerID, materialID, safeName)

	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(input.Reader, hasher)}
	if err := s.objects.Upload(ctx, key, counter, contentType); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(safeName, path.Ext(safeName))
	}
	m := &domain.Material{
		MaterialID:  materialID,
		Title:       title,
		Subject:     input.Subject,
		Description: input.Description,
		Object:      key,
		FileName:    safeName,
		ContentType: contentType,
		Size:        counter.n,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
		IsPrivate:   input.IsPrivate,
		OwnerID:     input.OwnerID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Put(ctx, m); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			slog.Warn("failed to remove orphaned material object", "key", key, "err", derr)
		}
		return nil, err
	}
	return m, nil
}

func (s *service) Get(ctx context.Context, materialID, requesterID string, isAdmin bool) (*domain.Material, error) {
	m, err := s.repo.Get(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if m.IsPrivate && m.OwnerID != requesterID && !isAdmin {
		// Private materials are invisible to other users.
		return nil, fmt.Errorf("material not found: %w", domain.ErrNotFound)
	}
	return m, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID string) ([]domain.Material, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) Download(ctx context.Context, materialID, requesterID string, isAdmin bool) (*s3infra.Object, *domain.Material, error) {
	m, err := s.Get(ctx, materialID, requesterID, isAdmin)
	if err != nil {
		return nil, nil, err
	}
	obj, err := s.objects.Download(ctx, m.Object)
	if err != nil {
		return nil, nil, err
	}
	if obj.ContentType == "" {
		obj.ContentType = m.ContentType
	}
	return obj, m, nil
}

func (s *service) Delete(ctx context.Context, materialID, requesterID string, isAdmin bool) error {
	m, err := s.Get(ctx, materialID, requesterID, isAdmin)
	if err != nil {
		return err
	}
	if m.OwnerID != requesterID && !isAdmin {
		return fmt.Errorf("only the owner can delete a material: %w", domain.ErrForbidden)
	}
	if err := s.repo.Delete(ctx, materialID); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, m.Object); err != nil {
		slog.Warn("failed to delete material object", "material_id", materialID, "key", m.Object, "err", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}

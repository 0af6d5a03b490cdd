package photo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/stayloop/rental-booking-backend/internal/pkg/storage"
	"github.com/stayloop/rental-booking-backend/internal/property"
)

// maxUploadBytes caps listing photos at 10 MiB.
const maxUploadBytes = 10 << 20

type Service interface {
	// Upload stores a listing photo for the property, generating a thumbnail.
	// Only the property owner (or an admin) may upload.
	Upload(ctx context.Context, propertyID string, header *multipart.FileHeader, userID string, isAdmin bool) (*Photo, error)

	GetByID(ctx context.Context, id string) (*Photo, error)
	ListByProperty(ctx context.Context, propertyID string) ([]*Photo, error)

	// Download streams the original photo.
	Download(ctx context.Context, id string) (io.ReadCloser, *Photo, error)

	// DownloadThumbnail streams the photo's thumbnail, falling back to the
	// original if no thumbnail was generated.
	DownloadThumbnail(ctx context.Context, id string) (io.ReadCloser, *Photo, error)

	Delete(ctx context.Context, id, userID string, isAdmin bool) error
}

type service struct {
	repo        Repository
	propService property.Service
	storage     storage.Storage
	imgProc     *storage.ImageProcessor
}

func NewService(repo Repository, propService property.Service, store storage.Storage) Service {
	return &service{
		repo:        repo,
		propService: propService,
		storage:     store,
		imgProc:     storage.NewImageProcessor(),
	}
}

func (s *service) checkOwner(ctx context.Context, propertyID, userID string, isAdmin bool) error {
	p, err := s.propService.GetByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if p.OwnerID != userID && !isAdmin {
		return ErrPermissionDenied
	}
	return nil
}

func (s *service) Upload(ctx context.Context, propertyID string, header *multipart.FileHeader, userID string, isAdmin bool) (*Photo, error) {
	if err := s.checkOwner(ctx, propertyID, userID, isAdmin); err != nil {
		return nil, err
	}

	if header.Size > maxUploadBytes {
		return nil, ErrTooLarge
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotAnImage
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file failed: %w", err)
	}
	defer src.Close()

	// Buffered so the same bytes feed both the store and the thumbnailer.
	content, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read uploaded file failed: %w", err)
	}
	if int64(len(content)) > maxUploadBytes {
		return nil, ErrTooLarge
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	shard := id[:2]
	storagePath := fmt.Sprintf("photos/%s/%s%s", shard, id, ext)

	if err := s.storage.Save(ctx, storagePath, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("save photo failed: %w", err)
	}

	var thumbnailPath *string
	if thumb, err := s.imgProc.GenerateThumbnail(bytes.NewReader(content), 400, 400); err != nil {
		log.Printf("photo: thumbnail for %s failed: %v", id, err)
	} else {
		tPath := fmt.Sprintf("photos/%s/%s_thumb.jpg", shard, id)
		if err := s.storage.Save(ctx, tPath, thumb); err != nil {
			log.Printf("photo: save thumbnail for %s failed: %v", id, err)
		} else {
			thumbnailPath = &tPath
		}
	}

	p := &Photo{
		ID:            id,
		PropertyID:    propertyID,
		UploadedBy:    userID,
		Filename:      header.Filename,
		StoragePath:   storagePath,
		ThumbnailPath: thumbnailPath,
		ContentType:   contentType,
		Size:          int64(len(content)),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		// Keep storage consistent with the database.
		if derr := s.storage.Delete(ctx, storagePath); derr != nil {
			log.Printf("photo: cleanup %s failed: %v", storagePath, derr)
		}
		if thumbnailPath != nil {
			if derr := s.storage.Delete(ctx, *thumbnailPath); derr != nil {
				log.Printf("photo: cleanup %s failed: %v", *thumbnailPath, derr)
			}
		}
		return nil, err
	}
	return p, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Photo, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByProperty(ctx context.Context, propertyID string) ([]*Photo, error) {
	return s.repo.ListByProperty(ctx, propertyID)
}

func (s *service) Download(ctx context.Context, id string) (io.ReadCloser, *Photo, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	stream, err := s.storage.Get(ctx, p.StoragePath)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	return stream, p, nil
}

func (s *service) DownloadThumbnail(ctx context.Context, id string) (io.ReadCloser, *Photo, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	path := p.StoragePath
	if p.ThumbnailPath != nil {
		path = *p.ThumbnailPath
	}
	stream, err := s.storage.Get(ctx, path)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	return stream, p, nil
}

func (s *service) Delete(ctx context.Context, id, userID string, isAdmin bool) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwner(ctx, p.PropertyID, userID, isAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, p.StoragePath); err != nil {
		log.Printf("photo: delete blob %s failed: %v", p.StoragePath, err)
	}
	if p.ThumbnailPath != nil {
		if err := s.storage.Delete(ctx, *p.ThumbnailPath); err != nil {
			log.Printf("photo: delete blob %s failed: %v", *p.ThumbnailPath, err)
		}
	}
	return nil
}

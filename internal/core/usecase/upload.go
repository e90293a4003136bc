package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

// UploadDocumentUseCase stores an uploaded file and registers its metadata.
type UploadDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
}

func NewUploadDocumentUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage) *UploadDocumentUseCase {
	return &UploadDocumentUseCase{
		repo:    repo,
		storage: storage,
	}
}

func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	filename, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	fileID := newFileID()
	storageKey := fmt.Sprintf("%s_%s", fileID, sanitizeFilename(filename))

	counting := &countingReader{reader: body}
	if err := uc.storage.Save(ctx, storageKey, counting); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		FileID:      fileID,
		Filename:    filename,
		ContentType: contentType,
		Size:        counting.count,
		StoragePath: storageKey,
		UploadedAt:  time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

const fileIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newFileID produces ids like file-20260829153000-a1B2c3D4.
func newFileID() string {
	var raw [8]byte
	_, _ = rand.Read(raw[:])
	suffix := make([]byte, len(raw))
	for i, b := range raw {
		suffix[i] = fileIDAlphabet[int(b)%len(fileIDAlphabet)]
	}
	return fmt.Sprintf("file-%s-%s", time.Now().Format("20060102150405"), suffix)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}

type countingReader struct {
	reader io.Reader
	count  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.count += int64(n)
	return n, err
}

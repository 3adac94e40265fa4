package storage

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"imageUpscaler/api/database"
)

var ErrBlobNotFound = errors.New("blob not found")

const defaultExtension = ".jpeg"

// Metadata is what we know about a blob beyond its bytes. Both fields
// are optional.
type Metadata struct {
	ContentType string
	Filename    string
}

type Blob struct {
	Name string
	Data []byte
	Meta Metadata
}

// BlobStore keeps binary payloads in the shared database so the worker
// processes can reach them too.
type BlobStore struct {
	db *database.DB
}

func NewBlobStore(db *database.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (s *BlobStore) Put(ctx context.Context, blob Blob) error {
	query := `
		INSERT INTO blobs (name, data, content_type, filename)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Pool.Exec(ctx, query,
		blob.Name,
		blob.Data,
		nullable(blob.Meta.ContentType),
		nullable(blob.Meta.Filename),
	)
	return err
}

func (s *BlobStore) Get(ctx context.Context, name string) (Blob, error) {
	query := `
		SELECT data, content_type, filename
		FROM blobs
		WHERE name = $1
	`

	var (
		blob        = Blob{Name: name}
		contentType *string
		filename    *string
	)
	err := s.db.Pool.QueryRow(ctx, query, name).Scan(&blob.Data, &contentType, &filename)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Blob{}, ErrBlobNotFound
		}
		return Blob{}, err
	}

	if contentType != nil {
		blob.Meta.ContentType = *contentType
	}
	if filename != nil {
		blob.Meta.Filename = *filename
	}

	return blob, nil
}

// GenerateName produces a collision-resistant blob name carrying a file
// extension inferred from the metadata: content-type first, then the
// declared filename, then a jpeg fallback.
func GenerateName(meta Metadata) string {
	return uuid.NewString() + ExtensionFor(meta)
}

func ExtensionFor(meta Metadata) string {
	if meta.ContentType != "" {
		if mediatype, _, err := mime.ParseMediaType(meta.ContentType); err == nil {
			if _, subtype, ok := strings.Cut(mediatype, "/"); ok && subtype != "" {
				return "." + subtype
			}
		}
	}
	if ext := filepath.Ext(meta.Filename); ext != "" {
		return ext
	}
	return defaultExtension
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

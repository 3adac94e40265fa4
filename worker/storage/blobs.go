package storage

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBlobNotFound = errors.New("blob not found")

const defaultExtension = ".jpeg"

type Metadata struct {
	ContentType string
	Filename    string
}

type Blob struct {
	Name string
	Data []byte
	Meta Metadata
}

type BlobStore interface {
	Get(ctx context.Context, name string) (Blob, error)
	Put(ctx context.Context, blob Blob) error
	Delete(ctx context.Context, name string) error
}

// PostgresBlobStore is the worker's view of the shared blob table:
// fetch inputs, store outputs, delete consumed inputs.
type PostgresBlobStore struct {
	db *pgxpool.Pool
}

func NewPostgresBlobStore(db *pgxpool.Pool) *PostgresBlobStore {
	return &PostgresBlobStore{db: db}
}

func (s *PostgresBlobStore) Get(ctx context.Context, name string) (Blob, error) {
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
	err := s.db.QueryRow(ctx, query, name).Scan(&blob.Data, &contentType, &filename)
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

func (s *PostgresBlobStore) Put(ctx context.Context, blob Blob) error {
	query := `
		INSERT INTO blobs (name, data, content_type, filename)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query,
		blob.Name,
		blob.Data,
		nullable(blob.Meta.ContentType),
		nullable(blob.Meta.Filename),
	)
	return err
}

// Delete is idempotent: removing an absent blob is not an error.
func (s *PostgresBlobStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM blobs WHERE name = $1`, name)
	return err
}

// GenerateName produces a collision-resistant blob name. The extension
// is taken from the content-type subtype when present, else from the
// declared filename, else a jpeg fallback.
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

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateName_Unique(t *testing.T) {
	meta := Metadata{ContentType: "image/png"}

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		name := GenerateName(meta)
		if _, dup := seen[name]; dup {
			t.Fatalf("GenerateName produced a duplicate after %d calls: %s", i, name)
		}
		seen[name] = struct{}{}
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		want string
	}{
		{
			name: "content type wins over filename",
			meta: Metadata{ContentType: "image/png", Filename: "photo.gif"},
			want: ".png",
		},
		{
			name: "content type parameters ignored",
			meta: Metadata{ContentType: "image/jpeg; charset=binary"},
			want: ".jpeg",
		},
		{
			name: "filename extension when no content type",
			meta: Metadata{Filename: "lama_300px.png"},
			want: ".png",
		},
		{
			name: "default when nothing declared",
			meta: Metadata{},
			want: ".jpeg",
		},
		{
			name: "default when filename has no extension",
			meta: Metadata{Filename: "photo"},
			want: ".jpeg",
		},
		{
			name: "malformed content type falls through to filename",
			meta: Metadata{ContentType: "image", Filename: "a.gif"},
			want: ".gif",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionFor(tt.meta))
		})
	}
}

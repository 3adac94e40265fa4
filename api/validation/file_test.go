package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectImageType(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    ImageType
		wantErr error
	}{
		{
			name: "png",
			data: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			want: ImagePNG,
		},
		{
			name: "jpeg",
			data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00},
			want: ImageJPEG,
		},
		{
			name: "gif",
			data: []byte("GIF89a"),
			want: ImageGIF,
		},
		{
			name:    "text",
			data:    []byte("hello"),
			wantErr: ErrNotAnImage,
		},
		{
			name:    "empty",
			data:    nil,
			wantErr: ErrEmptyFile,
		},
		{
			name:    "pdf is not accepted",
			data:    []byte("%PDF-1.7"),
			wantErr: ErrNotAnImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectImageType(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "image/"+string(tt.want), tt.want.ContentType())
		})
	}
}

package validation

import (
	"bytes"
)

type ImageType string

const (
	ImagePNG  ImageType = "png"
	ImageJPEG ImageType = "jpeg"
	ImageGIF  ImageType = "gif"
)

var magicBytes = map[ImageType][]byte{
	ImagePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	ImageJPEG: {0xFF, 0xD8, 0xFF},
	ImageGIF:  {0x47, 0x49, 0x46, 0x38},
}

// DetectImageType sniffs the payload's magic bytes. The upscaler only
// accepts raster images it can decode, so anything else is rejected at
// the front door rather than burning a worker slot.
func DetectImageType(data []byte) (ImageType, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	for imageType, signature := range magicBytes {
		if bytes.HasPrefix(data, signature) {
			return imageType, nil
		}
	}

	return "", ErrNotAnImage
}

func (t ImageType) ContentType() string {
	return "image/" + string(t)
}

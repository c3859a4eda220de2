// Package photos stores profile pictures in object storage.
package photos

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	dErrors "organograma/pkg/domain-errors"
)

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes int64 = 5 << 20

// KeyPrefix groups profile pictures in the bucket.
const KeyPrefix = "fotos_perfil/"

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Upload is a validated image ready to be stored.
type Upload struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Object is a stored image.
type Object struct {
	Data        []byte
	ContentType string
}

// Prepare reads at most maxBytes from r and checks the content is an image.
// The declared content type is ignored; the bytes are sniffed.
func Prepare(r io.Reader, maxBytes int64) (*Upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read photo")
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "photo is required")
	}
	if int64(len(data)) > maxBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "photo is too large")
	}
	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "photo must be a jpeg, png, gif or webp image")
	}
	return &Upload{Data: data, ContentType: contentType, Extension: ext}, nil
}

// Key names the object holding personID's picture.
func Key(personID, ext string) string {
	return KeyPrefix + personID + "." + ext
}

// Reader returns the upload body.
func (u *Upload) Reader() io.Reader {
	return bytes.NewReader(u.Data)
}

func publicURL(baseURL, key string) string {
	if baseURL == "" {
		return "/photos/" + key
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + key
}

package photos

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "organograma/pkg/domain-errors"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestPrepare(t *testing.T) {
	t.Run("accepts a png", func(t *testing.T) {
		up, err := Prepare(bytes.NewReader(pngHeader), DefaultMaxBytes)
		require.NoError(t, err)
		assert.Equal(t, "image/png", up.ContentType)
		assert.Equal(t, "png", up.Extension)
	})

	t.Run("rejects non images", func(t *testing.T) {
		_, err := Prepare(bytes.NewReader([]byte("hello, world")), DefaultMaxBytes)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		data := append(append([]byte{}, pngHeader...), make([]byte, 64)...)
		_, err := Prepare(bytes.NewReader(data), 32)
		require.Error(t, err)
		assert.Equal(t, "photo is too large", dErrors.MessageOf(err))
	})

	t.Run("rejects empty uploads", func(t *testing.T) {
		_, err := Prepare(bytes.NewReader(nil), DefaultMaxBytes)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "fotos_perfil/p-1.jpg", Key("p-1", "jpg"))
}

func TestInMemoryServedByHandler(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory("")
	url, err := store.Put(ctx, Key("p-1", "png"), bytes.NewReader(pngHeader), int64(len(pngHeader)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/photos/fotos_perfil/p-1.png", url)

	r := chi.NewRouter()
	NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	t.Run("serves stored photo", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, pngHeader, w.Body.Bytes())
	})

	t.Run("missing photo", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/photos/fotos_perfil/none.png", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("keys outside the photo prefix", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/photos/other/secret", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPublicURL(t *testing.T) {
	store := NewInMemory("https://cdn.example.com/organograma/")
	url, err := store.Put(context.Background(), "fotos_perfil/x.png", bytes.NewReader(pngHeader), 0, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/organograma/fotos_perfil/x.png", url)
}

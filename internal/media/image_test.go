package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"socialapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestNormalize_ReencodesAsWebP(t *testing.T) {
	out, err := Normalize(pngBytes(t, 64, 32), "image/png", 10<<20)
	require.NoError(t, err)

	assert.Equal(t, "image/webp", out.ContentType)
	assert.Equal(t, 64, out.Width)
	assert.Equal(t, 32, out.Height)

	_, format, err := image.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
}

func TestNormalize_FitsLargeImages(t *testing.T) {
	out, err := Normalize(pngBytes(t, 4096, 1024), "", 0)
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, out.Width)
	assert.Equal(t, 512, out.Height)
}

func TestNormalize_Validation(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		declared string
		max      int64
	}{
		{"empty", nil, "", 0},
		{"not an image", []byte("hello world, definitely text"), "", 0},
		{"too large", pngBytes(t, 8, 8), "image/png", 10},
		{"declared type mismatch", pngBytes(t, 8, 8), "image/jpeg", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.content, tt.declared, tt.max)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

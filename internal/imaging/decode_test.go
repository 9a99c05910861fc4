package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngPayload(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeBase64(t *testing.T) {
	frame, err := DecodeBase64(pngPayload(t, 8, 6, color.RGBA{R: 200, G: 100, B: 50, A: 255}), 640, 480)
	require.NoError(t, err)
	require.True(t, frame.Valid())
	assert.Equal(t, 8, frame.Width)
	assert.Equal(t, 6, frame.Height)
	// BGR byte order.
	assert.Equal(t, byte(50), frame.Pix[0])
	assert.Equal(t, byte(100), frame.Pix[1])
	assert.Equal(t, byte(200), frame.Pix[2])
}

func TestDecodeBase64Downscales(t *testing.T) {
	frame, err := DecodeBase64(pngPayload(t, 1280, 960, color.RGBA{A: 255}), 640, 480)
	require.NoError(t, err)
	assert.Equal(t, 640, frame.Width)
	assert.Equal(t, 480, frame.Height)
	assert.True(t, frame.Valid())
}

func TestDecodeBase64KeepsAspectRatio(t *testing.T) {
	frame, err := DecodeBase64(pngPayload(t, 1280, 480, color.RGBA{A: 255}), 640, 480)
	require.NoError(t, err)
	assert.Equal(t, 640, frame.Width)
	assert.Equal(t, 240, frame.Height)
}

func TestDecodeBase64Errors(t *testing.T) {
	_, err := DecodeBase64("not-base64!!!", 640, 480)
	assert.ErrorIs(t, err, ErrDecode)

	garbage := base64.StdEncoding.EncodeToString([]byte("not an image"))
	_, err = DecodeBase64(garbage, 640, 480)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFrameValid(t *testing.T) {
	assert.False(t, (*Frame)(nil).Valid())
	assert.False(t, (&Frame{Width: 2, Height: 2, Pix: make([]byte, 5)}).Valid())
	assert.True(t, (&Frame{Width: 2, Height: 2, Pix: make([]byte, 12)}).Valid())
}

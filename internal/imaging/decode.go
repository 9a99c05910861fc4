// SPDX-License-Identifier: MIT

// Package imaging decodes inbound frame payloads into the BGR pixel layout
// the pose extractor consumes.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	// Register the decoders clients actually send.
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Frame is a decoded, resized frame in BGR byte order, 3 bytes per pixel.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// ErrDecode is returned for any payload that cannot be turned into a frame.
var ErrDecode = errors.New("frame decoding failed")

// Valid reports whether the frame holds a well-formed 3-channel image.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// DecodeBase64 decodes a base64 image payload (JPEG or PNG), scales it to fit
// within maxW x maxH preserving aspect ratio, and converts to BGR bytes.
func DecodeBase64(payload string, maxW, maxH int) (*Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return fromImage(img, maxW, maxH), nil
}

func fromImage(img image.Image, maxW, maxH int) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dstW, dstH := fit(w, h, maxW, maxH)
	rgba := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), img, b, xdraw.Src, nil)

	pix := make([]byte, dstW*dstH*3)
	for i, j := 0, 0; i < len(rgba.Pix); i, j = i+4, j+3 {
		pix[j] = rgba.Pix[i+2]   // B
		pix[j+1] = rgba.Pix[i+1] // G
		pix[j+2] = rgba.Pix[i]   // R
	}
	return &Frame{Width: dstW, Height: dstH, Pix: pix}
}

// fit computes the largest size within maxW x maxH keeping the aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	return dstW, dstH
}

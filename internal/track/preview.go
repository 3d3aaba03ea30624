package track

import (
	"image"

	"golang.org/x/image/draw"
)

// maxPreviewDim bounds the longest edge of a cached preview. Captures come
// back at full retina resolution; caching them unscaled wastes most of the
// preview budget.
const maxPreviewDim = 960

// scalePreview downscales img so its longest edge is at most maxPreviewDim,
// preserving aspect ratio. Small images pass through untouched.
func scalePreview(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxPreviewDim && h <= maxPreviewDim {
		return img
	}

	scale := float64(maxPreviewDim) / float64(w)
	if h > w {
		scale = float64(maxPreviewDim) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

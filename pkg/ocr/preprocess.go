package ocr

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	contrastFactor  = 1.2
	sharpnessFactor = 1.1

	scaleAlpha = 1.2
	scaleBeta  = 10
)

// isGray reports whether img is already single channel.
func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// toGray converts img to an 8-bit luminance image with a zero origin.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// toRGBA converts img to RGBA with a zero origin.
func toRGBA(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) {
		return r
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Enhance prepares a page for recognition. Gray pages are returned as-is.
// Colour pages are converted to RGBA and get a contrast boost of 1.2
// followed by sharpening of 1.1.
func Enhance(img image.Image) image.Image {
	if isGray(img) {
		return img
	}
	return sharpen(adjustContrast(toRGBA(img), contrastFactor), sharpnessFactor)
}

// Preprocess returns the grayscale, contrast scaled variant of img:
// each pixel becomes saturate(|p*1.2 + 10|).
func Preprocess(img image.Image) *image.Gray {
	src := toGray(img)
	b := src.Bounds()
	dst := image.NewGray(b)

	var lut [256]uint8
	for i := range lut {
		lut[i] = clamp8(math.Abs(float64(i)*scaleAlpha + scaleBeta))
	}

	for y := range b.Dy() {
		s := src.Pix[y*src.Stride : y*src.Stride+b.Dx()]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x, p := range s {
			d[x] = lut[p]
		}
	}
	return dst
}

// adjustContrast blends every channel toward or away from the mean
// luminance: out = mean + factor*(p - mean).
func adjustContrast(src *image.RGBA, factor float64) *image.RGBA {
	gray := toGray(src)
	var sum float64
	for _, p := range gray.Pix {
		sum += float64(p)
	}
	mean := 0.0
	if n := len(gray.Pix); n > 0 {
		mean = math.Floor(sum/float64(n) + 0.5)
	}

	dst := image.NewRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		for c := range 3 {
			dst.Pix[i+c] = clamp8(mean + factor*(float64(src.Pix[i+c])-mean))
		}
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

// sharpen blends with a 3x3 smoothed copy (centre weight 5, others 1):
// out = smooth + factor*(p - smooth). Border pixels are left unchanged.
func sharpen(src *image.RGBA, factor float64) *image.RGBA {
	b := src.Rect
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(b)
	copy(dst.Pix, src.Pix)
	if w < 3 || h < 3 {
		return dst
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := y*src.Stride + x*4
			for c := range 3 {
				var acc float64
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						v := float64(src.Pix[o+dy*src.Stride+dx*4+c])
						if dx == 0 && dy == 0 {
							v *= 5
						}
						acc += v
					}
				}
				smooth := math.Floor(acc/13 + 0.5)
				dst.Pix[o+c] = clamp8(smooth + factor*(float64(src.Pix[o+c])-smooth))
			}
		}
	}
	return dst
}

func clamp8(v float64) uint8 {
	v = math.RoundToEven(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

package ocr

import (
	"image"
	"math"
)

// Layout is a coarse page layout label.
type Layout string

const (
	LayoutText  Layout = "text"
	LayoutDense Layout = "dense"
	LayoutMixed Layout = "mixed"
)

// LayoutConfig holds the layout classification thresholds.
type LayoutConfig struct {
	// MinArea drops components with an area at or below it.
	MinArea int

	// MixedRatio labels a page mixed when std/mean of the areas exceeds it.
	MixedRatio float64

	// DenseCount labels a page dense when more components than this remain.
	DenseCount int
}

// DefaultLayoutConfig returns the standard thresholds.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		MinArea:    100,
		MixedRatio: 2.0,
		DenseCount: 50,
	}
}

// ClassifyLayout binarizes img with Otsu's threshold (ink as foreground),
// measures the outermost 8-connected ink regions and labels the page from
// their area statistics. A region's area includes its holes, and anything
// drawn inside a hole belongs to the enclosing region. A page with no
// significant region is text.
func ClassifyLayout(img image.Image, c LayoutConfig) Layout {
	gray := toGray(img)
	t := otsuThreshold(gray)

	areas := componentAreas(gray, t)
	significant := areas[:0]
	for _, a := range areas {
		if a > c.MinArea {
			significant = append(significant, a)
		}
	}

	if len(significant) == 0 {
		return LayoutText
	}

	mean, std := meanStd(significant)
	switch {
	case mean > 0 && std/mean > c.MixedRatio:
		return LayoutMixed
	case len(significant) > c.DenseCount:
		return LayoutDense
	default:
		return LayoutText
	}
}

// otsuThreshold returns the gray level that maximizes between-class variance.
// Pixels at or below it are foreground.
func otsuThreshold(g *image.Gray) uint8 {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total := b.Dx() * b.Dy()
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var (
		sumB     float64
		wB       int
		best     float64
		thresh   int
		foundAny bool
	)
	for i := range 256 {
		wB += hist[i]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * hist[i])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if !foundAny || between > best {
			best = between
			thresh = i
			foundAny = true
		}
	}
	return uint8(thresh)
}

// componentAreas labels the outermost 8-connected regions of pixels <= t and
// returns their filled areas. A uniform page has no foreground at all.
func componentAreas(g *image.Gray, t uint8) []int {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	fg := make([]bool, w*h)
	var lo, hi uint8 = 255, 0
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, p := range row {
			lo, hi = min(lo, p), max(hi, p)
			fg[y*w+x] = p <= t
		}
	}
	if lo == hi {
		return nil
	}
	fillHoles(fg, w, h)

	seen := make([]bool, w*h)
	var areas []int
	stack := make([]int, 0, 64)
	for start := range fg {
		if !fg[start] || seen[start] {
			continue
		}

		area := 0
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			px, py := p%w, p/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					q := ny*w + nx
					if fg[q] && !seen[q] {
						seen[q] = true
						stack = append(stack, q)
					}
				}
			}
		}
		areas = append(areas, area)
	}
	return areas
}

// fillHoles marks as foreground every background pixel that cannot reach the
// page border through 4-connected background. 4-connectivity is the dual of
// the 8-connected foreground, so a diagonal gap in a stroke still closes it.
func fillHoles(fg []bool, w, h int) {
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))
	push := func(p int) {
		if !fg[p] && !outside[p] {
			outside[p] = true
			stack = append(stack, p)
		}
	}
	for x := range w {
		push(x)
		push((h-1)*w + x)
	}
	for y := range h {
		push(y * w)
		push(y*w + w - 1)
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		px, py := p%w, p/w
		if px > 0 {
			push(p - 1)
		}
		if px < w-1 {
			push(p + 1)
		}
		if py > 0 {
			push(p - w)
		}
		if py < h-1 {
			push(p + w)
		}
	}

	for i := range fg {
		if !outside[i] {
			fg[i] = true
		}
	}
}

func meanStd(xs []int) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := float64(x) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// Package capture samples frames from a playing video source and keeps the
// visually novel ones as scenes.
package capture

import (
	"image"
	"math"
)

// Fingerprint is a block-average color vector: mean RGB per grid cell,
// laid out row-major as [r0 g0 b0 r1 g1 b1 ...] on a 0-255 scale.
type Fingerprint []float64

// ComputeFingerprint partitions img into a cols×rows grid and averages the
// RGB channels of each cell.
func ComputeFingerprint(img image.Image, cols, rows int) Fingerprint {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	fp := make(Fingerprint, 0, cols*rows*3)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x0 := bounds.Min.X + col*width/cols
			x1 := bounds.Min.X + (col+1)*width/cols
			y0 := bounds.Min.Y + row*height/rows
			y1 := bounds.Min.Y + (row+1)*height/rows

			var sumR, sumG, sumB float64
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					sumR += float64(r >> 8)
					sumG += float64(g >> 8)
					sumB += float64(b >> 8)
					count++
				}
			}

			if count == 0 {
				fp = append(fp, 0, 0, 0)
				continue
			}
			fp = append(fp, sumR/float64(count), sumG/float64(count), sumB/float64(count))
		}
	}

	return fp
}

// Distance returns the mean absolute per-channel difference to other.
// Mismatched lengths yield +Inf so the frame is treated as novel.
func (f Fingerprint) Distance(other Fingerprint) float64 {
	if len(f) != len(other) || len(f) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range f {
		sum += math.Abs(f[i] - other[i])
	}
	return sum / float64(len(f))
}

// DarkCellRatio reports the fraction of grid cells whose luminance falls
// below threshold.
func (f Fingerprint) DarkCellRatio(threshold float64) float64 {
	cells := len(f) / 3
	if cells == 0 {
		return 0
	}

	dark := 0
	for i := 0; i < cells; i++ {
		r := f[i*3]
		g := f[i*3+1]
		b := f[i*3+2]
		luminance := 0.299*r + 0.587*g + 0.114*b
		if luminance < threshold {
			dark++
		}
	}
	return float64(dark) / float64(cells)
}

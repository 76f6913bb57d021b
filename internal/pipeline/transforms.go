package pipeline

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// StageOutcome records one ordered pipeline stage's attempt, matching
// the original processor's operations_applied/failed_operations lists:
// a stage that falls back carries both the primary failure reason and
// the fallback name; a stage that is skipped carries only a reason.
type StageOutcome struct {
	Name     string
	Applied  string // empty when skipped
	Reason   string // failure reason, empty on a clean primary success
	Skipped  bool
}

// defaultMaxDimension is used when a caller passes maxDimension <= 0,
// matching the specification's stated default of 2048 for the
// "maximum image dimensions" configuration knob.
const defaultMaxDimension = 2048

// Resize shrinks img to fit within maxDimension on its longer side,
// matching the teacher's imaging.Resize(..., imaging.Lanczos) call. It
// always counts as applied, even when the image is already within
// bounds, mirroring the original's try/except (resize_image never
// raises for an already-small image, so it is always recorded).
func Resize(img image.Image, maxDimension int) (image.Image, StageOutcome) {
	if maxDimension <= 0 {
		maxDimension = defaultMaxDimension
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img, StageOutcome{Name: "resize", Applied: "resize"}
	}
	var out image.Image
	if w > h {
		out = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
	} else {
		out = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
	}
	return out, StageOutcome{Name: "resize", Applied: "resize"}
}

// CropInvoice crops img to the best boundary-detection candidate,
// falling back to the full frame when the cascade finds nothing usable.
func CropInvoice(img image.Image) (image.Image, StageOutcome) {
	candidate, stage, ok := DetectBoundary(img)
	if !ok {
		return img, StageOutcome{Name: "crop_invoice", Skipped: true, Reason: "no boundary candidate above threshold"}
	}
	cropped := imaging.Crop(img, candidate.Bounds)
	return cropped, StageOutcome{Name: "crop_invoice", Applied: string(stage)}
}

// Denoise applies a Gaussian-blur-based smoothing pass. Images under
// 20 px on either side are skipped; there is no fallback filter.
func Denoise(img image.Image) (image.Image, StageOutcome) {
	b := img.Bounds()
	if b.Dx() < 20 || b.Dy() < 20 {
		return img, StageOutcome{Name: "denoise", Skipped: true, Reason: "image too small to denoise safely"}
	}
	out := imaging.Blur(img, 0.6)
	return out, StageOutcome{Name: "denoise", Applied: "gaussian_blur"}
}

// EnhanceContrast applies the teacher's contrast/brightness/gamma
// sequence, falling back to a lighter single-pass adjustment if the
// image is already near-saturated (mean brightness at either extreme).
func EnhanceContrast(img image.Image) (image.Image, StageOutcome) {
	gray := toGray(img)
	b := gray.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return img, StageOutcome{Name: "enhance_contrast", Skipped: true, Reason: "empty image"}
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	mean := sum / float64(n)

	if mean < 20 || mean > 235 {
		out := imaging.AdjustContrast(img, 20)
		return out, StageOutcome{Name: "enhance_contrast", Applied: "light_contrast_fallback", Reason: "near-saturated brightness"}
	}

	out := imaging.AdjustContrast(img, 40)
	out = imaging.AdjustBrightness(out, 15)
	out = imaging.AdjustGamma(out, 1.1)
	return out, StageOutcome{Name: "enhance_contrast", Applied: "contrast_brightness_gamma"}
}

// PerspectiveCorrect warps img onto the best boundary candidate's
// quadrilateral via a bilinear remap; it is skipped outright when no
// candidate with a usable aspect ratio exists, since an attempted warp
// from degenerate corners would only distort the document further.
func PerspectiveCorrect(img image.Image) (image.Image, StageOutcome) {
	candidate, _, ok := DetectBoundary(img)
	if !ok || candidate.Aspect < 0.3 {
		return img, StageOutcome{Name: "perspective_correct", Skipped: true, Reason: "no usable quadrilateral"}
	}
	warped := perspectiveWarp(img, candidate.Corners)
	return warped, StageOutcome{Name: "perspective_correct", Applied: "perspective_warp"}
}

// Deskew estimates a small rotation angle from the dominant edge
// orientation and rotates it away, falling back to no-op when the
// estimated angle exceeds the original's 15-degree correction ceiling.
func Deskew(img image.Image) (image.Image, StageOutcome) {
	angle := estimateSkewAngle(img)
	const angleThreshold = 15.0
	if math.Abs(angle) < 0.3 {
		return img, StageOutcome{Name: "deskew", Skipped: true, Reason: "no measurable skew"}
	}
	if math.Abs(angle) > angleThreshold {
		return img, StageOutcome{Name: "deskew", Skipped: true, Reason: "estimated angle exceeds correction ceiling"}
	}
	out := imaging.Rotate(img, -angle, image.Transparent)
	return out, StageOutcome{Name: "deskew", Applied: "rotate"}
}

// Sharpen applies the teacher's unsharp-mask pass.
func Sharpen(img image.Image) (image.Image, StageOutcome) {
	out := imaging.Sharpen(img, 1.5)
	return out, StageOutcome{Name: "sharpen", Applied: "unsharp_mask"}
}

// Threshold binarizes img with an adaptive (locally-averaged) threshold,
// falling back to a single global Otsu threshold if the adaptive pass
// produces a degenerate (near-empty or near-full) result.
func Threshold(img image.Image) (image.Image, StageOutcome) {
	gray := toGray(img)
	adaptive := adaptiveThreshold(gray)
	if !isDegenerate(adaptive) {
		return adaptive, StageOutcome{Name: "threshold", Applied: "adaptive"}
	}
	otsu := otsuThreshold(gray)
	out := globalThreshold(gray, otsu)
	return out, StageOutcome{Name: "threshold", Applied: "otsu_fallback", Reason: "adaptive threshold produced a degenerate image"}
}

func isDegenerate(img *image.Gray) bool {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return true
	}
	var white int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y > 200 {
				white++
			}
		}
	}
	ratio := float64(white) / float64(n)
	return ratio < 0.02 || ratio > 0.98
}

func globalThreshold(gray *image.Gray, t uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y >= t {
				out.SetGray(x, y, image.White.C)
			} else {
				out.SetGray(x, y, image.Black.C)
			}
		}
	}
	return out
}

// adaptiveThreshold binarizes each pixel against the mean of its local
// window, standing in for cv2.adaptiveThreshold's mean-C variant.
func adaptiveThreshold(gray *image.Gray) *image.Gray {
	const window = 15
	const c = 10
	b := gray.Bounds()
	out := image.NewGray(b)
	half := window / 2

	integral := buildIntegralImage(gray)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			x0 := max(b.Min.X, x-half)
			y0 := max(b.Min.Y, y-half)
			x1 := min(b.Max.X-1, x+half)
			y1 := min(b.Max.Y-1, y+half)
			area := (x1 - x0 + 1) * (y1 - y0 + 1)
			sum := regionSum(integral, b, x0, y0, x1, y1)
			localMean := float64(sum) / float64(area)

			if float64(gray.GrayAt(x, y).Y) >= localMean-c {
				out.SetGray(x, y, image.White.C)
			} else {
				out.SetGray(x, y, image.Black.C)
			}
		}
	}
	return out
}

func buildIntegralImage(gray *image.Gray) [][]int64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	sum := make([][]int64, h+1)
	for i := range sum {
		sum[i] = make([]int64, w+1)
	}
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			sum[y+1][x+1] = sum[y][x+1] + rowSum
		}
	}
	return sum
}

func regionSum(integral [][]int64, b image.Rectangle, x0, y0, x1, y1 int) int64 {
	rx0, ry0 := x0-b.Min.X, y0-b.Min.Y
	rx1, ry1 := x1-b.Min.X+1, y1-b.Min.Y+1
	return integral[ry1][rx1] - integral[ry0][rx1] - integral[ry1][rx0] + integral[ry0][rx0]
}

// estimateSkewAngle scans a small band of candidate angles and returns
// the one whose horizontal row-sum profile has the highest variance,
// standing in for the original's Hough-line-angle vote.
func estimateSkewAngle(img image.Image) float64 {
	gray := toGray(img)
	bestAngle := 0.0
	bestVariance := -1.0
	for angle := -10.0; angle <= 10.0; angle += 1.0 {
		rotated := imaging.Rotate(gray, angle, image.Transparent)
		v := rowSumVariance(rotated)
		if v > bestVariance {
			bestVariance = v
			bestAngle = angle
		}
	}
	return -bestAngle
}

func rowSumVariance(img image.Image) float64 {
	gray := toGray(img)
	b := gray.Bounds()
	h := b.Dy()
	if h == 0 {
		return 0
	}
	sums := make([]float64, h)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		var rowSum float64
		for x := b.Min.X; x < b.Max.X; x++ {
			rowSum += float64(gray.GrayAt(x, y).Y)
		}
		sums[y-b.Min.Y] = rowSum
	}
	var mean float64
	for _, s := range sums {
		mean += s
	}
	mean /= float64(h)
	var variance float64
	for _, s := range sums {
		variance += (s - mean) * (s - mean)
	}
	return variance / float64(h)
}

// perspectiveWarp remaps img's quadrilateral corners onto an axis-aligned
// rectangle via inverse bilinear interpolation.
func perspectiveWarp(img image.Image, corners [4]image.Point) image.Image {
	tl, tr, br, bl := corners[0], corners[1], corners[2], corners[3]
	outW := int(math.Max(dist(tl, tr), dist(bl, br)))
	outH := int(math.Max(dist(tl, bl), dist(tr, br)))
	if outW <= 0 || outH <= 0 {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		v := float64(y) / float64(outH)
		for x := 0; x < outW; x++ {
			u := float64(x) / float64(outW)
			sx, sy := bilinearCorner(tl, tr, br, bl, u, v)
			out.Set(x, y, img.At(int(sx), int(sy)))
		}
	}
	return out
}

func dist(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

func bilinearCorner(tl, tr, br, bl image.Point, u, v float64) (float64, float64) {
	top := lerpPoint(tl, tr, u)
	bottom := lerpPoint(bl, br, u)
	x := top[0] + (bottom[0]-top[0])*v
	y := top[1] + (bottom[1]-top[1])*v
	return x, y
}

func lerpPoint(a, b image.Point, t float64) [2]float64 {
	return [2]float64{
		float64(a.X) + (float64(b.X)-float64(a.X))*t,
		float64(a.Y) + (float64(b.Y)-float64(a.Y))*t,
	}
}

package pipeline

import (
	"image"
	"math"
)

// ClassificationResult mirrors the Python is_document_image's metadata
// dict: the five weighted signal scores plus the combined confidence.
type ClassificationResult struct {
	TextScore       float64
	EdgeScore       float64
	RectScore       float64
	BrightnessScore float64
	AspectScore     float64
	Confidence      float64
	IsDocument      bool
}

const documentConfidenceThreshold = 0.25

// ClassifyDocument runs the five-signal weighted gate against img,
// ported field-for-field from the original image_processor's
// is_document_image and its _analyze_* helpers. It has no error path:
// every image is scored by the five signals, and there is no fallback
// confidence.
func ClassifyDocument(img image.Image) ClassificationResult {
	gray := toGray(img)

	text := analyzeTextRegions(gray)
	edge := analyzeEdgePatterns(gray)
	rect := analyzeRectangularFeatures(gray)
	bright := analyzeBrightnessDistribution(img, gray)
	aspect := analyzeAspectRatio(img)

	confidence := text*0.35 + edge*0.25 + rect*0.20 + bright*0.10 + aspect*0.10

	return ClassificationResult{
		TextScore:       text,
		EdgeScore:       edge,
		RectScore:       rect,
		BrightnessScore: bright,
		AspectScore:     aspect,
		Confidence:      confidence,
		IsDocument:      confidence >= documentConfidenceThreshold,
	}
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

// analyzeTextRegions approximates the original's morphological-close +
// Otsu + contour-count pipeline with a line-run scan: it counts runs of
// pixels below the Otsu threshold per row that are longer than 20 px,
// since this module carries no contour toolkit (see DESIGN.md's
// stdlib-CV justification).
func analyzeTextRegions(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	threshold := otsuThreshold(gray)

	var darkArea, textRegions int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		runStart := -1
		for x := b.Min.X; x <= b.Max.X; x++ {
			dark := x < b.Max.X && gray.GrayAt(x, y).Y < threshold
			if dark {
				if runStart == -1 {
					runStart = x
				}
			} else if runStart != -1 {
				runW := x - runStart
				if runW > 20 {
					textRegions++
				}
				darkArea += runW
				runStart = -1
			}
		}
	}

	imageArea := w * h
	textDensity := float64(darkArea) / float64(imageArea)
	densityScore := math.Min(textDensity*10, 1.0)
	regionScore := math.Min(float64(textRegions)/20, 1.0)
	return densityScore*0.7 + regionScore*0.3
}

// analyzeEdgePatterns replaces Canny+Hough with a Sobel-gradient edge
// density and a row/column alignment count standing in for
// horizontal/vertical line structure (see DESIGN.md).
func analyzeEdgePatterns(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var edgePixels int
	hCount := make([]int, h)
	vCount := make([]int, w)

	const edgeThreshold = 60
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx := int(gray.GrayAt(x+1, y).Y) - int(gray.GrayAt(x-1, y).Y)
			gy := int(gray.GrayAt(x, y+1).Y) - int(gray.GrayAt(x, y-1).Y)
			mag := math.Sqrt(float64(gx*gx + gy*gy))
			if mag > edgeThreshold {
				edgePixels++
				if abs(gx) > abs(gy)*2 {
					vCount[x-b.Min.X]++
				} else if abs(gy) > abs(gx)*2 {
					hCount[y-b.Min.Y]++
				}
			}
		}
	}

	totalPixels := w * h
	edgeDensity := float64(edgePixels) / float64(totalPixels)

	lineRunThreshold := w / 3
	var horizontalLines int
	for _, c := range hCount {
		if c > lineRunThreshold {
			horizontalLines++
		}
	}
	lineRunThresholdV := h / 3
	var verticalLines int
	for _, c := range vCount {
		if c > lineRunThresholdV {
			verticalLines++
		}
	}

	lineScore := math.Min(float64(horizontalLines+verticalLines)/20, 1.0)
	return math.Min(edgeDensity*5, 1.0)*0.4 + lineScore*0.6
}

// analyzeRectangularFeatures stands in for polygon-approximation contour
// counting with a border-aligned dark-region ratio: the fraction of
// large connected dark blocks whose bounding box fills most of its own
// extent (a rough stand-in for "four corners"), per DESIGN.md.
func analyzeRectangularFeatures(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	threshold := otsuThreshold(gray)
	blocks := connectedDarkBlocks(gray, threshold)

	imageArea := w * h
	var significant, rectangular int
	for _, blk := range blocks {
		area := blk.area
		if float64(area) < float64(imageArea)*0.001 {
			continue
		}
		significant++
		bboxArea := blk.bounds.Dx() * blk.bounds.Dy()
		if bboxArea == 0 {
			continue
		}
		fill := float64(area) / float64(bboxArea)
		if fill > 0.6 { // fills most of its bounding box: rectangle-like
			rectangular++
		}
	}
	if significant == 0 {
		return 0
	}
	return float64(rectangular) / float64(significant)
}

func analyzeBrightnessDistribution(img image.Image, gray *image.Gray) float64 {
	b := gray.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)

	brightnessScore := math.Min(mean/255.0, 1.0)
	varianceScore := math.Max(0.0, 1.0-(std/127.5))

	colorScore := colorUniformity(img)

	return brightnessScore*0.4 + varianceScore*0.4 + colorScore*0.2
}

func colorUniformity(img image.Image) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0.5
	}
	var sumR, sumG, sumB float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sumR += float64(r >> 8)
			sumG += float64(g >> 8)
			sumB += float64(bl >> 8)
		}
	}
	meanR, meanG, meanB := sumR/float64(n), sumG/float64(n), sumB/float64(n)

	var sqR, sqG, sqB float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sqR += sq(float64(r>>8) - meanR)
			sqG += sq(float64(g>>8) - meanG)
			sqB += sq(float64(bl>>8) - meanB)
		}
	}
	stdR := math.Sqrt(sqR / float64(n))
	stdG := math.Sqrt(sqG / float64(n))
	stdB := math.Sqrt(sqB / float64(n))
	avgStd := (stdR + stdG + stdB) / 3
	return math.Max(0.0, 1.0-(avgStd/127.5))
}

func sq(v float64) float64 { return v * v }

func analyzeAspectRatio(img image.Image) float64 {
	b := img.Bounds()
	width, height := float64(b.Dx()), float64(b.Dy())
	if width == 0 || height == 0 {
		return 0.5
	}
	aspectRatio := math.Max(width, height) / math.Min(width, height)

	switch {
	case aspectRatio >= 1.0 && aspectRatio <= 5.0:
		switch {
		case aspectRatio >= 1.2 && aspectRatio <= 2.0:
			return 1.0
		case aspectRatio <= 3.5:
			return 0.8
		default:
			return 0.6
		}
	default:
		return math.Max(0.0, 1.0-((aspectRatio-5.0)/10.0))
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

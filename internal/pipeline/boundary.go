package pipeline

import (
	"image"
	"math"
)

// Candidate is one boundary-detection result: its four ordered corners
// (top-left, top-right, bottom-right, bottom-left) and its score
// breakdown, mirroring _score_document_candidate's return dict.
type Candidate struct {
	Corners     [4]image.Point
	Bounds      image.Rectangle
	Area        int
	Position    float64
	Aspect      float64
	Size        float64
	Compactness float64
	Border      float64
	Total       float64
}

// boundaryStageName identifies which cascade stage produced a candidate,
// recorded in the pipeline's operations-applied metadata.
type boundaryStageName string

const (
	stageAdaptiveCanny      boundaryStageName = "adaptive_canny"
	stageColorSegmentation  boundaryStageName = "color_segmentation"
	stageEnhancedContour    boundaryStageName = "enhanced_contour"
	stageTextRegionCluster  boundaryStageName = "text_region_cluster"
)

// DetectBoundary runs the four-stage cascade in order, returning the
// first stage that yields at least one candidate with a total score
// above 0.3, in
// the same first-success-wins order as the original detector's
// canny -> color -> contour -> text-cluster fallback chain.
func DetectBoundary(img image.Image) (Candidate, boundaryStageName, bool) {
	gray := toGray(img)

	for _, stage := range []struct {
		name boundaryStageName
		fn   func(*image.Gray, image.Image) []Candidate
	}{
		{stageAdaptiveCanny, adaptiveEdgeCandidates},
		{stageColorSegmentation, colorSegmentationCandidates},
		{stageEnhancedContour, enhancedContourCandidates},
		{stageTextRegionCluster, textRegionClusterCandidates},
	} {
		candidates := stage.fn(gray, img)
		if best, ok := bestCandidate(candidates); ok {
			return best, stage.name, true
		}
	}
	return Candidate{}, "", false
}

func bestCandidate(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Total > best.Total {
			best = c
		}
	}
	if best.Total <= 0.3 { // below this, a non-match is preferable to a bad crop
		return Candidate{}, false
	}
	return best, true
}

// adaptiveEdgeCandidates finds dark-region blocks at a stricter Otsu-like
// threshold, standing in for Canny-edge-driven contour extraction.
func adaptiveEdgeCandidates(gray *image.Gray, img image.Image) []Candidate {
	threshold := otsuThreshold(gray)
	blocks := connectedDarkBlocks(gray, threshold)
	return scoreBlocks(blocks, img.Bounds())
}

// colorSegmentationCandidates widens the threshold band, standing in for
// HSV-saturation-based background segmentation.
func colorSegmentationCandidates(gray *image.Gray, img image.Image) []Candidate {
	threshold := otsuThreshold(gray)
	widened := threshold
	if widened < 235 {
		widened += 20
	}
	blocks := connectedDarkBlocks(gray, widened)
	return scoreBlocks(blocks, img.Bounds())
}

// enhancedContourCandidates relaxes the minimum area filter used inside
// scoreBlocks, covering small receipts the first two passes miss.
func enhancedContourCandidates(gray *image.Gray, img image.Image) []Candidate {
	threshold := otsuThreshold(gray)
	blocks := connectedDarkBlocks(gray, threshold)
	return scoreBlocksMinArea(blocks, img.Bounds(), 0.0005)
}

// textRegionClusterCandidates takes the bounding box of all dark blocks
// combined, falling back to whatever text-like content exists when no
// single clean contour emerges.
func textRegionClusterCandidates(gray *image.Gray, img image.Image) []Candidate {
	threshold := otsuThreshold(gray)
	blocks := connectedDarkBlocks(gray, threshold)
	if len(blocks) == 0 {
		return nil
	}
	union := blocks[0].bounds
	totalArea := 0
	for _, blk := range blocks {
		union = union.Union(blk.bounds)
		totalArea += blk.area
	}
	merged := darkBlock{area: totalArea, bounds: union}
	return scoreBlocks([]darkBlock{merged}, img.Bounds())
}

func scoreBlocks(blocks []darkBlock, imgBounds image.Rectangle) []Candidate {
	return scoreBlocksMinArea(blocks, imgBounds, 0.001)
}

func scoreBlocksMinArea(blocks []darkBlock, imgBounds image.Rectangle, minAreaRatio float64) []Candidate {
	width, height := float64(imgBounds.Dx()), float64(imgBounds.Dy())
	imageArea := width * height
	var out []Candidate
	for _, blk := range blocks {
		if float64(blk.area) < imageArea*minAreaRatio {
			continue
		}
		out = append(out, scoreCandidate(blk, imgBounds))
	}
	return out
}

// scoreCandidate ports _score_document_candidate's five weighted scores
// exactly, operating on a block's bounding rectangle in place of an
// approximated polygon's four corners.
func scoreCandidate(blk darkBlock, imgBounds image.Rectangle) Candidate {
	width, height := float64(imgBounds.Dx()), float64(imgBounds.Dy())
	r := blk.bounds
	corners := [4]image.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}

	centerX := (float64(corners[0].X) + float64(corners[1].X) + float64(corners[2].X) + float64(corners[3].X)) / 4
	centerY := (float64(corners[0].Y) + float64(corners[1].Y) + float64(corners[2].Y) + float64(corners[3].Y)) / 4

	const optimalXRatio, optimalYRatio = 0.6, 0.5
	xRatio := centerX / width
	yRatio := centerY / height
	xDist := math.Abs(xRatio - optimalXRatio)
	yDist := math.Abs(yRatio - optimalYRatio)
	positionScore := math.Max(0, 1.0-2.0*(xDist+yDist))

	rectWidth := float64(r.Dx())
	rectHeight := float64(r.Dy())
	var aspectScore float64
	if rectWidth > 0 {
		aspectRatio := rectHeight / rectWidth
		switch {
		case aspectRatio >= 1.2 && aspectRatio <= 3.0:
			aspectScore = 1.0
		case aspectRatio < 1.2:
			aspectScore = math.Max(0, aspectRatio/1.2)
		default:
			aspectScore = math.Max(0, 3.0/aspectRatio)
		}
	}

	imageArea := width * height
	areaPercentage := (float64(blk.area) / imageArea) * 100
	var sizeScore float64
	switch {
	case areaPercentage >= 10 && areaPercentage <= 60:
		sizeScore = 1.0
	case areaPercentage < 10:
		sizeScore = areaPercentage / 10
	default:
		sizeScore = math.Max(0, (90-areaPercentage)/30)
	}

	perimeter := 2 * (rectWidth + rectHeight)
	var compactnessScore float64
	if perimeter > 0 {
		compactness := (4 * math.Pi * float64(blk.area)) / (perimeter * perimeter)
		compactnessScore = math.Min(1.0, compactness/0.785)
	}

	minBorderDistance := math.Min(
		math.Min(float64(r.Min.X), float64(r.Min.Y)),
		math.Min(width-float64(r.Max.X), height-float64(r.Max.Y)),
	)
	minDistanceThreshold := math.Min(width, height) * 0.05
	var borderScore float64
	if minDistanceThreshold <= 0 {
		borderScore = 1.0
	} else if minBorderDistance >= minDistanceThreshold {
		borderScore = 1.0
	} else {
		borderScore = minBorderDistance / minDistanceThreshold
	}

	total := positionScore*0.25 + aspectScore*0.20 + sizeScore*0.20 + compactnessScore*0.20 + borderScore*0.15

	return Candidate{
		Corners:     corners,
		Bounds:      r,
		Area:        blk.area,
		Position:    positionScore,
		Aspect:      aspectScore,
		Size:        sizeScore,
		Compactness: compactnessScore,
		Border:      borderScore,
		Total:       total,
	}
}

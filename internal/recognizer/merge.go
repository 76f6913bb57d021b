package recognizer

import "github.com/100starsco/invoice-ocr-pipeline/internal/job"

// iouThreshold is frozen at 0.5 per the specification's dual-pass mode
// (an open question about resolution-adaptive thresholds is explicitly
// left unresolved there, so this stays a constant).
const iouThreshold = 0.5

// boundingBox returns the axis-aligned rectangle (minX, minY, maxX, maxY)
// enclosing a region's polygon, used as the IoU basis per the glossary's
// definition of IoU as an axis-aligned-rectangle measure.
func boundingBox(r job.TextRegion) (minX, minY, maxX, maxY int) {
	minX, minY = r.Polygon[0].X, r.Polygon[0].Y
	maxX, maxY = r.Polygon[0].X, r.Polygon[0].Y
	for _, p := range r.Polygon[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return
}

func iou(a, b job.TextRegion) float64 {
	aMinX, aMinY, aMaxX, aMaxY := boundingBox(a)
	bMinX, bMinY, bMaxX, bMaxY := boundingBox(b)

	ix0, iy0 := max(aMinX, bMinX), max(aMinY, bMinY)
	ix1, iy1 := min(aMaxX, bMaxX), min(aMaxY, bMaxY)
	if ix1 <= ix0 || iy1 <= iy0 {
		return 0
	}
	interArea := float64((ix1 - ix0) * (iy1 - iy0))
	areaA := float64((aMaxX - aMinX) * (aMaxY - aMinY))
	areaB := float64((bMaxX - bMinX) * (bMaxY - bMinY))
	union := areaA + areaB - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// isThaiDominant reports whether text is at least 20% Thai codepoints,
// the threshold the merge rule uses to decide whether to favor the
// primary region's script-specific strength.
func isThaiDominant(text string) bool {
	ratios := scriptRatios(text)
	return ratios.thai >= 0.2
}

// MergeDualPass reconciles a primary and secondary pass by bounding-box
// IoU: for each primary region, the overlapping secondary region with
// the highest IoU (>= 0.5) is found; Thai-dominant primary text is kept
// unless the secondary's confidence exceeds it by at least 25%,
// otherwise the secondary is kept unless the primary exceeds it by at
// least 25%. Unmatched secondary regions are appended. A region is
// tagged DualPassImproved when the secondary replaces the primary.
//
// Merging a set with itself is idempotent: every region matches itself
// at IoU 1.0, neither confidence can exceed the other by 25%, and a kept
// secondary identical to its primary is not tagged DualPassImproved, so
// every region comes back unchanged.
func MergeDualPass(primary, secondary []job.TextRegion) []job.TextRegion {
	used := make([]bool, len(secondary))
	merged := make([]job.TextRegion, 0, len(primary)+len(secondary))

	for _, p := range primary {
		bestIdx := -1
		bestIoU := 0.0
		for si, s := range secondary {
			if used[si] {
				continue
			}
			v := iou(p, s)
			if v > bestIoU {
				bestIoU = v
				bestIdx = si
			}
		}

		if bestIdx < 0 || bestIoU < iouThreshold {
			merged = append(merged, p)
			continue
		}

		s := secondary[bestIdx]
		used[bestIdx] = true

		var keep job.TextRegion
		if isThaiDominant(p.Text) {
			if s.Confidence > p.Confidence*1.25 {
				keep = s
				keep.DualPassImproved = true
			} else {
				keep = p
			}
		} else {
			if p.Confidence > s.Confidence*1.25 {
				keep = p
			} else {
				keep = s
				if s != p {
					keep.DualPassImproved = true
				}
			}
		}
		merged = append(merged, keep)
	}

	for si, s := range secondary {
		if !used[si] {
			merged = append(merged, s)
		}
	}
	return merged
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

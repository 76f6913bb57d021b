package pipeline

import "image"

// otsuThreshold picks a binarization threshold by the same variance-
// maximizing criterion OpenCV's THRESH_OTSU uses, computed from the
// gray histogram directly since this module has no cv2 binding.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	total := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var maxVar float64
	threshold := 128

	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		betweenVar := wB * wF * (mB - mF) * (mB - mF)
		if betweenVar > maxVar {
			maxVar = betweenVar
			threshold = t
		}
	}
	return uint8(threshold)
}

// darkBlock is one connected component of below-threshold pixels.
type darkBlock struct {
	area   int
	bounds image.Rectangle
}

// connectedDarkBlocks runs a 4-connectivity flood fill over pixels
// darker than threshold, standing in for cv2.findContours in this
// module's CV-light environment (see DESIGN.md).
func connectedDarkBlocks(gray *image.Gray, threshold uint8) []darkBlock {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	visited := make([]bool, w*h)
	idx := func(x, y int) int { return (y-b.Min.Y)*w + (x - b.Min.X) }

	isDark := func(x, y int) bool {
		return gray.GrayAt(x, y).Y < threshold
	}

	var blocks []darkBlock
	stack := make([]image.Point, 0, 64)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if visited[idx(x, y)] || !isDark(x, y) {
				continue
			}
			minX, minY, maxX, maxY := x, y, x, y
			area := 0
			stack = stack[:0]
			stack = append(stack, image.Point{X: x, Y: y})
			visited[idx(x, y)] = true

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				area++
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
				neighbors := [4]image.Point{
					{X: p.X + 1, Y: p.Y}, {X: p.X - 1, Y: p.Y},
					{X: p.X, Y: p.Y + 1}, {X: p.X, Y: p.Y - 1},
				}
				for _, n := range neighbors {
					if n.X < b.Min.X || n.X >= b.Max.X || n.Y < b.Min.Y || n.Y >= b.Max.Y {
						continue
					}
					if visited[idx(n.X, n.Y)] || !isDark(n.X, n.Y) {
						continue
					}
					visited[idx(n.X, n.Y)] = true
					stack = append(stack, n)
				}
			}

			blocks = append(blocks, darkBlock{
				area:   area,
				bounds: image.Rect(minX, minY, maxX+1, maxY+1),
			})
		}
	}
	return blocks
}

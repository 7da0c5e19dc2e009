package grading

// point is a 2-D contour point in pixel coordinates.
type point struct {
	x, y float64
}

// largestRegionBoundary binarizes the bitmap, finds its largest 8-connected
// foreground region and returns that region's external boundary: every
// region pixel with a background (or out-of-bounds) cardinal neighbor.
func largestRegionBoundary(bitmap [][]uint8) []point {
	h := len(bitmap)
	if h == 0 {
		return nil
	}
	w := len(bitmap[0])
	if w == 0 {
		return nil
	}

	labels := make([][]int, h)
	for y := range labels {
		labels[y] = make([]int, w)
	}

	bestLabel, bestArea := 0, 0
	next := 1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bitmap[y][x] == 0 || labels[y][x] != 0 {
				continue
			}
			area := floodFill(bitmap, labels, x, y, next)
			if area > bestArea {
				bestArea = area
				bestLabel = next
			}
			next++
		}
	}
	if bestLabel == 0 {
		return nil
	}

	var boundary []point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if labels[y][x] != bestLabel {
				continue
			}
			if x == 0 || y == 0 || x == w-1 || y == h-1 ||
				bitmap[y][x-1] == 0 || bitmap[y][x+1] == 0 ||
				bitmap[y-1][x] == 0 || bitmap[y+1][x] == 0 {
				boundary = append(boundary, point{x: float64(x), y: float64(y)})
			}
		}
	}
	return boundary
}

// floodFill labels the 8-connected region containing (startX, startY) and
// returns its pixel area. Iterative stack, the masks can be large.
func floodFill(bitmap [][]uint8, labels [][]int, startX, startY, label int) int {
	h := len(bitmap)
	w := len(bitmap[0])

	stack := []int{startY*w + startX}
	labels[startY][startX] = label
	area := 0

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := idx%w, idx/w
		area++

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if bitmap[ny][nx] != 0 && labels[ny][nx] == 0 {
					labels[ny][nx] = label
					stack = append(stack, ny*w+nx)
				}
			}
		}
	}
	return area
}

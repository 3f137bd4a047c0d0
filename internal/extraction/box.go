package extraction

// gridSize is the side of the coordinate grid layout models expect.
const gridSize = 1000

// NormalizeBox maps a pixel box onto the 0-1000 grid, truncating to integers.
// Width and height must be positive; zero dimensions produce a degenerate box.
func NormalizeBox(box [4]int, width, height int) Box {
	if width <= 0 || height <= 0 {
		return Box{}
	}
	return Box{
		int(gridSize * float64(box[0]) / float64(width)),
		int(gridSize * float64(box[1]) / float64(height)),
		int(gridSize * float64(box[2]) / float64(width)),
		int(gridSize * float64(box[3]) / float64(height)),
	}
}

// DenormalizeBox scales a normalized box back to pixel coordinates.
func DenormalizeBox(b Box, width, height int) [4]int {
	return [4]int{
		int(float64(b[0]) * float64(width) / gridSize),
		int(float64(b[1]) * float64(height) / gridSize),
		int(float64(b[2]) * float64(width) / gridSize),
		int(float64(b[3]) * float64(height) / gridSize),
	}
}

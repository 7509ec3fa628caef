package game

// WindowCount is the number of four-cell lines on the board: 24 horizontal,
// 21 vertical and 12 along each diagonal.
const WindowCount = Rows*(Cols-WinLength+1) +
	Cols*(Rows-WinLength+1) +
	2*(Rows-WinLength+1)*(Cols-WinLength+1)

type window struct {
	x, y   int
	dx, dy int
}

var windows = buildWindows()

func buildWindows() [WindowCount]window {
	var ws [WindowCount]window
	i := 0
	add := func(x, y, dx, dy int) {
		ws[i] = window{x: x, y: y, dx: dx, dy: dy}
		i++
	}
	for y := 0; y < Rows; y++ {
		for x := 0; x <= Cols-WinLength; x++ {
			add(x, y, 1, 0)
		}
	}
	for y := 0; y <= Rows-WinLength; y++ {
		for x := 0; x < Cols; x++ {
			add(x, y, 0, 1)
		}
	}
	for y := 0; y <= Rows-WinLength; y++ {
		for x := 0; x <= Cols-WinLength; x++ {
			add(x, y, 1, 1)
			add(x, y+WinLength-1, 1, -1)
		}
	}
	return ws
}

// Window returns the markers of the i-th line, 0 <= i < WindowCount.
func (b *Board) Window(i int) [WinLength]Player {
	w := windows[i]
	var out [WinLength]Player
	for k := 0; k < WinLength; k++ {
		out[k] = b.cells[w.y+w.dy*k][w.x+w.dx*k]
	}
	return out
}

// WindowCells returns the coordinates covered by the i-th line.
func WindowCells(i int) [WinLength]Cell {
	w := windows[i]
	var out [WinLength]Cell
	for k := 0; k < WinLength; k++ {
		out[k] = Cell{X: w.x + w.dx*k, Y: w.y + w.dy*k}
	}
	return out
}

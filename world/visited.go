package world

import "github.com/nstehr/hive/hive-core/model"

// BlockSize is the edge length of one VisitedGrid block in map cells.
const BlockSize = 3

// VisitedGrid is a coarse grid over the map. A block is marked once any of its
// cells has been observed; marks are never cleared.
type VisitedGrid struct {
	Cols  int
	Rows  int
	Block int
	cells []bool
}

func NewVisitedGrid(mapW, mapH, block int) *VisitedGrid {
	if block <= 0 {
		block = BlockSize
	}
	cols := (mapW + block - 1) / block
	rows := (mapH + block - 1) / block
	return &VisitedGrid{Cols: cols, Rows: rows, Block: block, cells: make([]bool, cols*rows)}
}

// Visited returns the mark at block coordinates. Out-of-bounds blocks count as
// visited so searches never target them.
func (g *VisitedGrid) Visited(col, row int) bool {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return true
	}
	return g.cells[row*g.Cols+col]
}

// Mark records that the block containing l has been seen.
func (g *VisitedGrid) Mark(l model.Loc) {
	col, row := g.BlockOf(l)
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return
	}
	g.cells[row*g.Cols+col] = true
}

// BlockOf converts map coordinates to block coordinates.
func (g *VisitedGrid) BlockOf(l model.Loc) (int, int) {
	return l.X / g.Block, l.Y / g.Block
}

// BlockCenter returns the map cell at the middle of a block, clamped to the map.
func (g *VisitedGrid) BlockCenter(col, row, mapW, mapH int) model.Loc {
	x := min(col*g.Block+g.Block/2, mapW-1)
	y := min(row*g.Block+g.Block/2, mapH-1)
	return model.Loc{X: x, Y: y}
}

// Remaining counts unvisited blocks.
func (g *VisitedGrid) Remaining() int {
	n := 0
	for _, v := range g.cells {
		if !v {
			n++
		}
	}
	return n
}

package rasterview

import "math"

// replicateBlock grows src by pixel replication to an xsize by ysize block.
//
// leftExtra and topExtra are display pixels to shave off the left and top of
// the replicated result, rightExtra and bottomExtra off the right and bottom.
// The shaved pixels let a fractional raster pixel sit at each edge of the
// display while every replicated pixel keeps the same on-screen size.
func replicateBlock(src *Block, xsize, ysize, leftExtra, topExtra, rightExtra, bottomExtra int) *Block {
	out := NewBlock(xsize, ysize, src.Float)
	if src.Width == 0 || src.Height == 0 {
		return out
	}

	nRptsX := float64(xsize+leftExtra+rightExtra) / float64(src.Width)
	nRptsY := float64(ysize+topExtra+bottomExtra) / float64(src.Height)

	rowCount := int(math.Ceil(float64(src.Height) * nRptsY))
	colCount := int(math.Ceil(float64(src.Width) * nRptsX))

	rowScale := float64(src.Height) / float64(rowCount)
	colScale := float64(src.Width) / float64(colCount)

	srcCols := make([]int, xsize)
	for x := 0; x < xsize; x++ {
		col := int(float64(leftExtra+x) * colScale)
		if col > src.Width-1 {
			col = src.Width - 1
		}
		srcCols[x] = col
	}

	for y := 0; y < ysize; y++ {
		row := int(float64(topExtra+y) * rowScale)
		if row > src.Height-1 {
			row = src.Height - 1
		}
		srcRow := src.Data[row*src.Width : row*src.Width+src.Width]
		outRow := out.Data[y*xsize : y*xsize+xsize]
		for x := 0; x < xsize; x++ {
			outRow[x] = srcRow[srcCols[x]]
		}
	}
	return out
}

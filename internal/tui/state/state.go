// Package state holds the cursor arithmetic for the wallpaper grid.
package state

import "github.com/glabrego/prismwalls/internal/wallpaper"

// Columns is the grid width in cards.
const Columns = 2

func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

// GridRows is the number of card rows needed for size cards.
func GridRows(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + Columns - 1) / Columns
}

// Move shifts the cursor by whole rows and single columns, staying inside
// the grid. Moving right from the last column wraps to the next row.
func Move(cursor, size, dRow, dCol int) int {
	if size <= 0 {
		return 0
	}
	next := ClampCursor(cursor, size) + dRow*Columns + dCol
	if next < 0 {
		return 0
	}
	if next >= size {
		// A short last row keeps the cursor on the final card.
		return size - 1
	}
	return next
}

// PageStep is how many card rows one pgup/pgdown covers.
func PageStep(height, cardRows int, hasStatus bool) int {
	if height <= 0 || cardRows <= 0 {
		return 3
	}
	headerLines := 6
	if hasStatus {
		headerLines += 2
	}
	step := (height - headerLines) / cardRows
	if step < 1 {
		step = 1
	}
	return step
}

// CenteredWindow returns the [start, end) rows to draw so the cursor row
// stays roughly centered.
func CenteredWindow(totalRows, cursorRow, height int) (int, int) {
	if totalRows <= 0 {
		return 0, 0
	}
	if height <= 0 || totalRows <= height {
		return 0, totalRows
	}
	cursorRow = ClampCursor(cursorRow, totalRows)
	start := cursorRow - height/2
	if start < 0 {
		start = 0
	}
	maxStart := totalRows - height
	if start > maxStart {
		start = maxStart
	}
	return start, start + height
}

// NearEnd reports whether the cursor sits within threshold rows of the last
// row, which is when the next page should be requested.
func NearEnd(cursor, size, threshold int) bool {
	if size <= 0 {
		return false
	}
	return GridRows(size)-1-ClampCursor(cursor, size)/Columns <= threshold
}

func IndexByID(items []wallpaper.ViewModel, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

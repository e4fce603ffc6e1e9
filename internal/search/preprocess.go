package search

import (
	"bufio"
	"strings"
)

// Flatten rewrites markdown so every table row becomes a standalone line of
// space-separated cells. Separator rows are dropped and runs of blank lines
// collapse to one. Text without tables only has its lines trimmed.
func Flatten(markdown string) string {
	var b strings.Builder
	b.Grow(len(markdown))

	sc := bufio.NewScanner(strings.NewReader(markdown))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	blank := true // suppress leading blank lines
	emit := func(s string, para bool) {
		b.WriteString(s)
		b.WriteByte('\n')
		if para {
			// A flattened row is its own paragraph.
			b.WriteByte('\n')
		}
		blank = para
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			if !blank {
				b.WriteByte('\n')
				blank = true
			}
		case isTableRow(line):
			if cells := tableCells(line); len(cells) > 0 {
				emit(strings.Join(cells, " "), true)
			}
		default:
			emit(line, false)
		}
	}
	if sc.Err() != nil {
		// Lines over the scanner cap: fall back to the input.
		return markdown
	}
	return strings.TrimRight(b.String(), "\n")
}

func isTableRow(line string) bool {
	return len(line) > 1 && strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|")
}

// tableCells returns the non-empty cells of a row, or nil for a separator
// row such as |---|:--:|.
func tableCells(line string) []string {
	var cells []string
	sep := true
	for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			sep = false
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	if sep {
		return nil
	}
	return cells
}

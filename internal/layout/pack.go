package layout

import "sort"

// sortSpans orders spans by start minute. The sort is stable, so events that
// start together keep their input order; column assignment depends on it.
func sortSpans(spans []span) {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})
}

// packColumns assigns sorted spans to columns with greedy first-fit: each
// span goes into the first column none of whose members it overlaps, or
// into a new column. Each column holds positions into spans, in placement
// order.
//
// On start-ordered input the column count equals the largest number of
// spans active at any instant. The scan is O(n^2) in the worst case.
func packColumns(spans []span) [][]int {
	var columns [][]int
	for i, s := range spans {
		placed := false
		for c, members := range columns {
			if fits(spans, members, s) {
				columns[c] = append(columns[c], i)
				placed = true
				break
			}
		}
		if !placed {
			columns = append(columns, []int{i})
		}
	}
	return columns
}

// fits reports whether s overlaps none of the given members. Every member
// must be checked: zero-duration spans mean the last member of a column is
// not necessarily the one that ends latest.
func fits(spans []span, members []int, s span) bool {
	for _, m := range members {
		if overlaps(spans[m], s) {
			return false
		}
	}
	return true
}

// columnIndex inverts a packing: the column of each position in spans.
func columnIndex(columns [][]int, n int) []int {
	idx := make([]int, n)
	for c, members := range columns {
		for _, m := range members {
			idx[m] = c
		}
	}
	return idx
}

// clusterColumns returns, for each position in sorted spans, the number of
// columns used by its overlap cluster. A cluster closes as soon as a span
// starts at or after the latest end seen so far.
func clusterColumns(spans []span, column []int) []int {
	out := make([]int, len(spans))
	begin := 0
	maxEnd := 0
	width := 0
	flush := func(end int) {
		for i := begin; i < end; i++ {
			out[i] = width
		}
	}
	for i, s := range spans {
		if i > begin && s.start >= maxEnd {
			flush(i)
			begin = i
			width = 0
			maxEnd = 0
		}
		if s.end > maxEnd {
			maxEnd = s.end
		}
		if column[i]+1 > width {
			width = column[i] + 1
		}
	}
	flush(len(spans))
	return out
}

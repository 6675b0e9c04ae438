package slicer

import "sort"

// Dedup removes duplicate lines and merges collinear lines. Lines occurring more than once are dropped unless they are edges, since a cut shared by two faces lies inside the solid. Two collinear lines meeting at a point that connects nothing else are replaced by a single line. Lines that are still duplicated afterwards are collapsed into one, which is kept only when it is an edge. The result is ordered by line key.
func Dedup(lines []Line) []Line {
	lines = append([]Line{}, lines...)
	sortLines(lines)

	del := make([]bool, len(lines))
	forEachDuplicate(lines, func(i, j int) {
		for k := i; k < j; k++ {
			del[k] = !lines[k].Edge
		}
	})

	// adjacency from point to the lines that use it
	order := []Key{}
	adj := map[Key][]int{}
	link := func(k Key, i int) {
		if _, ok := adj[k]; !ok {
			order = append(order, k)
		}
		adj[k] = append(adj[k], i)
	}
	unlink := func(k Key, i int) {
		is := adj[k]
		for j, l := range is {
			if l == i {
				adj[k] = append(is[:j:j], is[j+1:]...)
				return
			}
		}
	}
	for i, line := range lines {
		if !del[i] {
			link(line.P1.Key(), i)
			link(line.P2.Key(), i)
		}
	}

	for _, k := range order {
		is := adj[k]
		if len(is) != 2 {
			continue
		}
		i1, i2 := is[0], is[1]
		l1, l2 := lines[i1], lines[i2]
		if !l1.IsCollinear(l2) {
			continue
		}
		p1, p2 := l1.P1, l2.P1
		if p1.Key() == k {
			p1 = l1.P2
		}
		if p2.Key() == k {
			p2 = l2.P2
		}
		k1, k2 := p1.Key(), p2.Key()
		if k1 == k2 {
			continue
		}
		del[i1], del[i2] = true, true
		unlink(k1, i1)
		unlink(k1, i2)
		unlink(k2, i1)
		unlink(k2, i2)
		adj[k] = nil

		merged := NewOrderedLine(p1, p2)
		merged.Edge = l1.Edge || l2.Edge
		merged.Coplanar = l1.Coplanar && l2.Coplanar
		lines = append(lines, merged)
		del = append(del, false)
		link(k1, len(lines)-1)
		link(k2, len(lines)-1)
	}

	kept := make([]Line, 0, len(lines))
	for i, line := range lines {
		if !del[i] {
			kept = append(kept, line)
		}
	}
	sortLines(kept)

	out := kept[:0]
	i := 0
	for i < len(kept) {
		j := i + 1
		for j < len(kept) && kept[j].Key() == kept[i].Key() {
			j++
		}
		if j-i == 1 {
			out = append(out, kept[i])
		} else {
			for k := i; k < j; k++ {
				if kept[k].Edge {
					out = append(out, kept[k])
					break
				}
			}
		}
		i = j
	}
	return out
}

func sortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Key().Less(lines[j].Key())
	})
}

// forEachDuplicate calls f with the half-open range [i,j) of every run of two or more lines with equal keys in sorted lines.
func forEachDuplicate(lines []Line, f func(i, j int)) {
	i := 0
	for i < len(lines) {
		j := i + 1
		for j < len(lines) && lines[j].Key() == lines[i].Key() {
			j++
		}
		if 1 < j-i {
			f(i, j)
		}
		i = j
	}
}

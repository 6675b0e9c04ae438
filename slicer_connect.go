package slicer

import "sort"

// maxPaths bounds the number of candidate paths traced from one starting point.
const maxPaths = 10000

type candidate struct {
	nodes []int
	open  bool
}

// connector joins line segments into paths over a graph of their end points. Traversal state is kept per node: seen marks nodes reached by any trace, used marks nodes that belong to an emitted path and onPath marks the nodes of the trace in progress.
type connector struct {
	z      float64
	pts    []Point
	links  [][]int
	seen   []bool
	used   []bool
	onPath []bool

	output  []*Polygon
	pending []candidate // open paths awaiting bridging
}

// Connect joins lines into polygons. Closed loops become closed polygons, where at forks the longest loop is kept and loops that reuse its points are dropped. Paths with dangling ends are joined end to end when their ends lie within BridgeGap, becoming closed when head and tail meet within CloseGap, and are otherwise returned as open polygons. Closed polygons are cleaned.
func Connect(lines []Line, z float64) []*Polygon {
	c := &connector{z: z}
	index := map[Key]int{}
	node := func(p Point) int {
		p = p.Round(5)
		k := p.Key()
		if i, ok := index[k]; ok {
			return i
		}
		index[k] = len(c.pts)
		c.pts = append(c.pts, p)
		c.links = append(c.links, nil)
		return len(c.pts) - 1
	}
	for _, line := range lines {
		i, j := node(line.P1), node(line.P2)
		if i == j {
			continue
		}
		c.links[i] = append(c.links[i], j)
		c.links[j] = append(c.links[j], i)
	}
	c.seen = make([]bool, len(c.pts))
	c.used = make([]bool, len(c.pts))
	c.onPath = make([]bool, len(c.pts))

	// dangling ends first
	for i := range c.pts {
		if !c.seen[i] && len(c.links[i]) == 1 {
			c.emitLongest(c.trace(i))
		}
	}
	// then loops, twice to pick up points of failed searches
	for pass := 0; pass < 2; pass++ {
		for i := range c.pts {
			if !c.seen[i] && !c.used[i] && len(c.links[i]) == 2 {
				c.emitLongest(c.trace(i))
			}
		}
		free := 0
		for i := range c.pts {
			c.seen[i] = c.used[i]
			if !c.used[i] {
				free++
			}
		}
		if free < 2 {
			break
		}
	}

	c.bridge()
	return c.output
}

// trace returns the candidate paths starting at node start.
func (c *connector) trace(start int) []candidate {
	var paths []candidate
	c.follow(start, -1, nil, &paths)
	return paths
}

// follow walks from node through nodes with two links until it reaches an open end, a node already on the path or a fork. At a fork every branch is followed with a copy of the path.
func (c *connector) follow(node, from int, path []int, paths *[]candidate) {
	if maxPaths < len(*paths) {
		Logger().Warn("indeterminate path", "z", c.z, "paths", len(*paths), "points", len(c.pts))
		return
	}
	var stack []int
	defer func() {
		for _, i := range stack {
			c.onPath[i] = false
		}
	}()
	for {
		stack = append(stack, node)
		path = append(path, node)
		c.onPath[node] = true
		c.seen[node] = true

		links := c.free(node)
		if len(path) == 1 {
			if len(links) == 0 {
				return
			}
			from, node = node, links[0]
			continue
		}

		if 2 < len(links) {
			for _, next := range links {
				if next == from {
					continue
				}
				if c.onPath[next] {
					*paths = append(*paths, candidate{nodes: sliceAt(path, next)})
				} else {
					c.follow(next, node, append([]int{}, path...), paths)
				}
			}
			return
		}

		next := -1
		for _, l := range links {
			if l != from {
				next = l
				break
			}
		}
		from = node
		if next == -1 {
			*paths = append(*paths, candidate{nodes: path, open: true})
			return
		} else if c.onPath[next] {
			*paths = append(*paths, candidate{nodes: sliceAt(path, next)})
			return
		}
		node = next
	}
}

// free returns the links of node that do not belong to an emitted path.
func (c *connector) free(node int) []int {
	links := make([]int, 0, len(c.links[node]))
	for _, l := range c.links[node] {
		if !c.used[l] {
			links = append(links, l)
		}
	}
	return links
}

// sliceAt returns the part of path starting at node term, which closes the loop back to term.
func sliceAt(path []int, term int) []int {
	for i := 0; i < len(path)-1; i++ {
		if path[i] == term {
			return path[i:]
		}
	}
	return path
}

// emitLongest emits paths from a single trace. When the trace only found closed loops, they are emitted from most to fewest points, skipping loops that share points with an already emitted one. Otherwise only the longest path is kept, either emitted when closed or set aside for bridging.
func (c *connector) emitLongest(paths []candidate) {
	if len(paths) == 0 {
		return
	}
	longest, closed, open := 0, 0, 0
	for i, path := range paths {
		if len(paths[longest].nodes) < len(path.nodes) {
			longest = i
		}
		if path.open {
			open++
		} else {
			closed++
		}
	}

	if 1 < closed && open == 0 {
		sort.SliceStable(paths, func(i, j int) bool {
			return len(paths[j].nodes) < len(paths[i].nodes)
		})
	Paths:
		for _, path := range paths {
			if len(path.nodes) < 3 {
				continue
			}
			for _, n := range path.nodes {
				if c.used[n] {
					continue Paths
				}
			}
			c.markUsed(path.nodes)
			c.emit(path.nodes, false)
		}
		return
	}

	path := paths[longest]
	c.markUsed(path.nodes)
	if path.open {
		c.pending = append(c.pending, path)
	} else {
		c.emit(path.nodes, false)
	}
}

func (c *connector) markUsed(nodes []int) {
	for _, n := range nodes {
		c.used[n] = true
	}
}

// bridge joins open paths whose ends lie within BridgeGap of each other.
func (c *connector) bridge() {
	merged := make([]bool, len(c.pending))
	for i := range c.pending {
		if merged[i] {
			continue
		}
		nodes := append([]int{}, c.pending[i].nodes...)
		for {
			last := c.pts[nodes[len(nodes)-1]]
			best, bestDist, reverse := -1, BridgeGap, false
			for j := i + 1; j < len(c.pending); j++ {
				if merged[j] {
					continue
				}
				other := c.pending[j].nodes
				if d := last.DistSq2D(c.pts[other[0]]); d <= bestDist && (best == -1 || d < bestDist) {
					best, bestDist, reverse = j, d, false
				}
				if d := last.DistSq2D(c.pts[other[len(other)-1]]); d <= bestDist && (best == -1 || d < bestDist) {
					best, bestDist, reverse = j, d, true
				}
			}
			if best == -1 {
				c.emit(nodes, true)
				break
			}

			merged[best] = true
			other := append([]int{}, c.pending[best].nodes...)
			if reverse {
				for a, b := 0, len(other)-1; a < b; a, b = a+1, b-1 {
					other[a], other[b] = other[b], other[a]
				}
			}
			nodes = append(nodes, other...)
			if c.pts[nodes[0]].DistSq2D(c.pts[nodes[len(nodes)-1]]) <= CloseGap {
				c.emit(nodes, false)
				break
			}
		}
	}
}

// emit adds a polygon through the given nodes to the output. Closed polygons are cleaned and dropped when fewer than three points remain.
func (c *connector) emit(nodes []int, open bool) {
	poly := &Polygon{Points: make([]Point, 0, len(nodes)), Open: open, Z: c.z}
	for _, n := range nodes {
		pt := c.pts[n]
		pt.Z = c.z
		poly.Points = append(poly.Points, pt)
	}
	if open {
		if 1 < len(poly.Points) {
			c.output = append(c.output, poly)
		}
		return
	}
	poly = poly.Clean(false)
	if 2 < len(poly.Points) {
		c.output = append(c.output, poly)
	}
}

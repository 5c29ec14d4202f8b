package core

// UnionFind is a disjoint-set forest over comparable identities, backed by an index arena.
// It is rebuilt for every forest computation and has no removal.
type UnionFind[T comparable] struct {
	index  map[T]int
	items  []T
	parent []int
	rank   []int
}

func NewUnionFind[T comparable](capacity int) *UnionFind[T] {
	return &UnionFind[T]{
		index:  make(map[T]int, capacity),
		items:  make([]T, 0, capacity),
		parent: make([]int, 0, capacity),
		rank:   make([]int, 0, capacity),
	}
}

// MakeSet makes x a singleton set. Calling it again for x resets x to a singleton.
func (uf *UnionFind[T]) MakeSet(x T) {
	if i, ok := uf.index[x]; ok {
		uf.parent[i] = i
		uf.rank[i] = 0
		return
	}
	i := len(uf.items)
	uf.index[x] = i
	uf.items = append(uf.items, x)
	uf.parent = append(uf.parent, i)
	uf.rank = append(uf.rank, 0)
}

// contains reports whether MakeSet has been called for x
func (uf *UnionFind[T]) contains(x T) bool {
	_, ok := uf.index[x]
	return ok
}

func (uf *UnionFind[T]) find(i int) int {
	root := i
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	// path compression
	for uf.parent[i] != root {
		next := uf.parent[i]
		uf.parent[i] = root
		i = next
	}
	return root
}

// Find returns the representative of the set containing x. x must have been added with MakeSet.
func (uf *UnionFind[T]) Find(x T) T {
	i, ok := uf.index[x]
	if !ok {
		panic("unionfind: find on element without a set")
	}
	return uf.items[uf.find(i)]
}

// Union merges the sets containing x and y, returning false if they were already the same set
func (uf *UnionFind[T]) Union(x, y T) bool {
	xi, ok := uf.index[x]
	if !ok {
		panic("unionfind: union on element without a set")
	}
	yi, ok := uf.index[y]
	if !ok {
		panic("unionfind: union on element without a set")
	}
	rx, ry := uf.find(xi), uf.find(yi)
	if rx == ry {
		return false
	}
	switch {
	case uf.rank[rx] < uf.rank[ry]:
		uf.parent[rx] = ry
	case uf.rank[rx] > uf.rank[ry]:
		uf.parent[ry] = rx
	default:
		uf.parent[ry] = rx
		uf.rank[rx]++
	}
	return true
}

// rankOf returns the rank of x's slot. Only meaningful for roots.
func (uf *UnionFind[T]) rankOf(x T) int {
	return uf.rank[uf.index[x]]
}

// Sets returns the number of disjoint sets
func (uf *UnionFind[T]) Sets() int {
	n := 0
	for i := range uf.parent {
		if uf.parent[i] == i {
			n++
		}
	}
	return n
}

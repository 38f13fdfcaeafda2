package rate

import "errors"

// ErrNegativeDelta is returned by Add and ReplaceRate when given a negative
// rate; the original C++ asserted DEBUG_CHECK(delta >= 0, ...) on add, we
// return an error instead since this tree is reused in a long-running
// service rather than a one-shot batch job.
var ErrNegativeDelta = errors.New("rate: negative rate delta")

// Classifier assigns an entity to a bin at each level of the tree. Levels
// returns the tree's fixed depth (the number of classification axes before
// reaching a leaf's CategoricalSet); BinCount bounds the number of bins at
// a given level; Classify returns which bin, in [0, BinCount(level)), elem
// belongs to at that level. This mirrors the nested ClassifierT contract
// documented in cat_nodes.h (classify/get), generalized from a single
// inner/outer pair to an arbitrary fixed depth.
type Classifier[T comparable] interface {
	Levels() int
	BinCount(level int) int
	Classify(elem T, level int) int
}

// node is either an internal classification node (children, no leaf set)
// or a leaf holding the CategoricalSet and per-member rates of one bin
// path. total and count are always kept consistent with the subtree below.
type node[T comparable] struct {
	isLeaf   bool
	total    float64
	count    int
	children []*node[T]
	set      *CategoricalSet[T]
	rates    map[T]float64
}

func newNode[T comparable](c Classifier[T], level int) *node[T] {
	if level >= c.Levels() {
		return &node[T]{isLeaf: true, set: NewCategoricalSet[T](), rates: make(map[T]float64)}
	}
	n := &node[T]{children: make([]*node[T], c.BinCount(level))}
	for i := range n.children {
		n.children[i] = newNode[T](c, level+1)
	}
	return n
}

// Tree is the categorical rate tree: Add/Remove/ReplaceRate maintain
// per-member rates, SampleWeighted draws an entity with probability
// proportional to its rate, SampleUniform draws with probability
// proportional to 1/|members| regardless of rate.
type Tree[T comparable] struct {
	classifier Classifier[T]
	root       *node[T]
}

// NewTree builds an empty tree shaped by classifier.
func NewTree[T comparable](classifier Classifier[T]) *Tree[T] {
	return &Tree[T]{classifier: classifier, root: newNode[T](classifier, 0)}
}

// TotalRate returns the root's cached total rate.
func (t *Tree[T]) TotalRate() float64 {
	return t.root.total
}

// Len returns the total number of members in the tree.
func (t *Tree[T]) Len() int {
	return t.root.count
}

// Contains reports whether elem is currently a member, reclassifying at
// every level to locate it.
func (t *Tree[T]) Contains(elem T) bool {
	return t.root.contains(t.classifier, elem, 0)
}

func (n *node[T]) contains(c Classifier[T], elem T, level int) bool {
	if n.isLeaf {
		return n.set.Contains(elem)
	}
	bin := c.Classify(elem, level)
	return n.children[bin].contains(c, elem, level+1)
}

// Walk calls fn once for every member, in leaf-traversal order. Used by
// consistency checks and by selection policies that need to scan a whole
// subtree rather than sample from it (e.g. the unfollow candidate scan).
func (t *Tree[T]) Walk(fn func(T)) {
	t.root.walk(fn)
}

func (n *node[T]) walk(fn func(T)) {
	if n.isLeaf {
		for _, e := range n.set.Elems() {
			fn(e)
		}
		return
	}
	for _, child := range n.children {
		child.walk(fn)
	}
}

// Add inserts elem with the given rate, classifying it at every level.
// Reports false, with no error, if elem was already a member — duplicate
// insertion is not itself an invariant violation.
func (t *Tree[T]) Add(elem T, rateVal float64) (bool, error) {
	if rateVal < 0 {
		return false, ErrNegativeDelta
	}
	added, _ := t.root.add(t.classifier, elem, rateVal, 0)
	return added, nil
}

func (n *node[T]) add(c Classifier[T], elem T, rateVal float64, level int) (bool, float64) {
	if n.isLeaf {
		if !n.set.Add(elem) {
			return false, 0
		}
		n.rates[elem] = rateVal
		n.total += rateVal
		n.count++
		return true, rateVal
	}
	bin := c.Classify(elem, level)
	added, delta := n.children[bin].add(c, elem, rateVal, level+1)
	if added {
		n.total += delta
		n.count++
	}
	return added, delta
}

// Remove deletes elem, reclassifying it at every level to find its leaf.
// Reports false if elem was not a member.
func (t *Tree[T]) Remove(elem T) bool {
	removed, _ := t.root.remove(t.classifier, elem, 0)
	return removed
}

func (n *node[T]) remove(c Classifier[T], elem T, level int) (bool, float64) {
	if n.isLeaf {
		rateVal, ok := n.rates[elem]
		if !ok {
			return false, 0
		}
		n.set.Remove(elem)
		delete(n.rates, elem)
		n.total -= rateVal
		n.count--
		return true, -rateVal
	}
	bin := c.Classify(elem, level)
	removed, delta := n.children[bin].remove(c, elem, level+1)
	if removed {
		n.total += delta
		n.count--
	}
	return removed, delta
}

// ReplaceRate updates elem's rate in place without moving it between bins,
// reclassifying only to locate its current leaf. Reports false if elem is
// not a member.
func (t *Tree[T]) ReplaceRate(elem T, newRate float64) (bool, error) {
	if newRate < 0 {
		return false, ErrNegativeDelta
	}
	ok, _ := t.root.replaceRate(t.classifier, elem, newRate, 0)
	return ok, nil
}

func (n *node[T]) replaceRate(c Classifier[T], elem T, newRate float64, level int) (bool, float64) {
	if n.isLeaf {
		old, ok := n.rates[elem]
		if !ok {
			return false, 0
		}
		delta := newRate - old
		n.rates[elem] = newRate
		n.total += delta
		return true, delta
	}
	bin := c.Classify(elem, level)
	ok, delta := n.children[bin].replaceRate(c, elem, newRate, level+1)
	if ok {
		n.total += delta
	}
	return ok, delta
}

// RecalcRates recomputes every cached total from the leaves up. Used after
// bulk external changes to member rates that bypassed ReplaceRate.
func (t *Tree[T]) RecalcRates() float64 {
	return t.root.recalcRates()
}

func (n *node[T]) recalcRates() float64 {
	if n.isLeaf {
		total := 0.0
		for _, r := range n.rates {
			total += r
		}
		n.total = total
		return total
	}
	total := 0.0
	for _, child := range n.children {
		total += child.recalcRates()
	}
	n.total = total
	return total
}

// SampleWeighted draws an entity with probability proportional to its
// rate, descending bin-by-bin proportional to subtree rate. On a floating
// point overshoot at the last bin boundary it falls back to the last
// non-empty bin, exactly as random_weighted_bin does in cat_nodes.h.
func (t *Tree[T]) SampleWeighted(src Source) (T, bool) {
	return t.root.sampleWeighted(src)
}

func (n *node[T]) sampleWeighted(src Source) (T, bool) {
	var zero T
	if n.count == 0 {
		return zero, false
	}
	if n.isLeaf {
		return n.sampleLeafWeighted(src)
	}
	num := src.Float64() * n.total
	for _, child := range n.children {
		if child.count == 0 {
			continue
		}
		num -= child.total
		if num <= ZEROTOL {
			return child.sampleWeighted(src)
		}
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if n.children[i].count > 0 {
			return n.children[i].sampleWeighted(src)
		}
	}
	return zero, false
}

func (n *node[T]) sampleLeafWeighted(src Source) (T, bool) {
	elems := n.set.Elems()
	num := src.Float64() * n.total
	for _, e := range elems {
		num -= n.rates[e]
		if num <= ZEROTOL {
			return e, true
		}
	}
	return elems[len(elems)-1], true
}

// SampleUniform draws an entity with probability proportional to 1/count,
// descending bin-by-bin proportional to subtree member count.
func (t *Tree[T]) SampleUniform(src Source) (T, bool) {
	return t.root.sampleUniform(src)
}

func (n *node[T]) sampleUniform(src Source) (T, bool) {
	var zero T
	if n.count == 0 {
		return zero, false
	}
	if n.isLeaf {
		return n.set.SampleUniform(src)
	}
	num := src.Intn(n.count)
	for _, child := range n.children {
		if num < child.count {
			return child.sampleUniform(src)
		}
		num -= child.count
	}
	for i := len(n.children) - 1; i >= 0; i-- {
		if n.children[i].count > 0 {
			return n.children[i].sampleUniform(src)
		}
	}
	return zero, false
}

// ShiftBins ages every member up by one bin along the tree's first (outer)
// classification level: a fresh empty bin is inserted at index 0 and the
// rest shift right, with whatever falls off the far end merged into the
// new last bin. This is the Go translation of
// TreeNode::shift_and_recalc_rates in cat_nodes.h, used to advance
// tweet-age bins in lockstep without reclassifying every member.
func (t *Tree[T]) ShiftBins() {
	root := t.root
	if root.isLeaf || len(root.children) == 0 {
		return
	}
	maxBins := len(root.children)
	fresh := newNode[T](t.classifier, 1)
	shifted := make([]*node[T], 0, maxBins+1)
	shifted = append(shifted, fresh)
	shifted = append(shifted, root.children...)

	if len(shifted) > maxBins {
		overflow := shifted[maxBins:]
		shifted = shifted[:maxBins]
		last := shifted[maxBins-1]
		for _, ob := range overflow {
			ob.drainInto(last)
		}
	}
	root.children = shifted
	root.recalcRates()
	root.recalcCounts()
}

// drainInto moves every member of n into the identically-shaped subtree
// dst, leaving n empty. Used by ShiftBins to collapse overflow bins.
func (n *node[T]) drainInto(dst *node[T]) {
	if n.isLeaf {
		for _, e := range n.set.Elems() {
			if dst.set.Add(e) {
				dst.rates[e] = n.rates[e]
			}
		}
		n.set = NewCategoricalSet[T]()
		n.rates = make(map[T]float64)
		n.total = 0
		n.count = 0
		return
	}
	for i, child := range n.children {
		child.drainInto(dst.children[i])
	}
	n.total = 0
	n.count = 0
}

func (n *node[T]) recalcCounts() int {
	if n.isLeaf {
		n.count = n.set.Len()
		return n.count
	}
	total := 0
	for _, child := range n.children {
		total += child.recalcCounts()
	}
	n.count = total
	return total
}

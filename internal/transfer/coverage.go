package transfer

import "sort"

type byteRange struct {
	start, end uint64
}

// coverage is the set of byte ranges written into a definite buffer, kept
// sorted and merged.
type coverage struct {
	spans []byteRange
	total uint64
}

// add marks [start,end) written and returns how many of those bytes were not
// covered before.
func (c *coverage) add(start, end uint64) uint64 {
	if end <= start {
		return 0
	}
	// first span that ends at or after start can merge with the new range
	i := sort.Search(len(c.spans), func(i int) bool { return c.spans[i].end >= start })
	merged := byteRange{start: start, end: end}
	var overlap uint64
	j := i
	for ; j < len(c.spans) && c.spans[j].start <= end; j++ {
		s := c.spans[j]
		lo, hi := max(s.start, start), min(s.end, end)
		if hi > lo {
			overlap += hi - lo
		}
		merged.start = min(merged.start, s.start)
		merged.end = max(merged.end, s.end)
	}
	c.spans = append(c.spans[:i], append([]byteRange{merged}, c.spans[j:]...)...)
	added := (end - start) - overlap
	c.total += added
	return added
}

// covered reports distinct bytes written.
func (c *coverage) covered() uint64 {
	return c.total
}

// complete reports whether [0,length) is fully covered.
func (c *coverage) complete(length uint64) bool {
	if length == 0 {
		return true
	}
	return len(c.spans) == 1 && c.spans[0].start == 0 && c.spans[0].end >= length
}

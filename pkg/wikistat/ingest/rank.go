package ingest

import "container/heap"

type tokenCount struct {
	token string
	count int
	first int // index of the first occurrence in the token stream
}

// outranks reports whether a should be listed before b.
func outranks(a, b tokenCount) bool {
	if a.count != b.count {
		return a.count > b.count
	}
	return a.first < b.first
}

// countHeap is a min-heap: the weakest entry sits at the root.
type countHeap []tokenCount

func (h countHeap) Len() int           { return len(h) }
func (h countHeap) Less(i, j int) bool { return outranks(h[j], h[i]) }
func (h countHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *countHeap) Push(x any) { *h = append(*h, x.(tokenCount)) }

func (h *countHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopN returns up to n distinct tokens ordered by descending frequency.
// Equal counts are ordered by first occurrence, so the result is fully
// determined by the input. Only n candidates are held at any time.
func TopN(tokens []string, n int) []string {
	if n <= 0 || len(tokens) == 0 {
		return []string{}
	}

	index := make(map[string]int, len(tokens)/2)
	var counts []tokenCount
	for i, tok := range tokens {
		if j, ok := index[tok]; ok {
			counts[j].count++
			continue
		}
		index[tok] = len(counts)
		counts = append(counts, tokenCount{token: tok, count: 1, first: i})
	}

	h := make(countHeap, 0, n)
	for _, c := range counts {
		if h.Len() < n {
			heap.Push(&h, c)
			continue
		}
		if outranks(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := make([]string, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(tokenCount).token
	}
	return out
}

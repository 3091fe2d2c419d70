package cluster

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// PairFunc returns the composite similarity of the pages at positions i and j (i < j).
// It must be safe for concurrent calls when used with ClusterParallel.
type PairFunc func(i, j int) float64

// Group is one reconstructed document: sorted page indices.
type Group struct {
	Pages []int
}

// Cluster merges every pair of pages whose similarity meets threshold and returns the
// resulting partition. Pages with no partner come back as singleton groups. Groups are
// ordered by their smallest page, so the output does not depend on input order.
func Cluster(pages []int, sim PairFunc, threshold float64) []Group {
	uf := NewUnionFind(len(pages))
	for i := 0; i < len(pages); i++ {
		for j := i + 1; j < len(pages); j++ {
			if sim(i, j) >= threshold {
				uf.Union(i, j)
			}
		}
	}
	return groups(pages, uf)
}

// ClusterParallel is Cluster with pair evaluation spread over workers goroutines.
// Unions are applied by a single goroutine. It fails only when ctx is cancelled.
func ClusterParallel(ctx context.Context, pages []int, sim PairFunc, threshold float64, workers int) ([]Group, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := len(pages)
	uf := NewUnionFind(n)

	merges := make(chan [2]int, 64)
	merged := make(chan struct{})
	go func() {
		defer close(merged)
		for m := range merges {
			uf.Union(m[0], m[1])
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			for j := i + 1; j < n; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if sim(i, j) < threshold {
					continue
				}
				select {
				case merges <- [2]int{i, j}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	err := g.Wait()
	close(merges)
	<-merged
	if err != nil {
		return nil, err
	}
	return groups(pages, uf), nil
}

func groups(pages []int, uf *UnionFind) []Group {
	sets := uf.Sets()
	out := make([]Group, 0, len(sets))
	for _, set := range sets {
		g := Group{Pages: make([]int, len(set))}
		for k, pos := range set {
			g.Pages[k] = pages[pos]
		}
		sort.Ints(g.Pages)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pages[0] < out[j].Pages[0] })
	return out
}

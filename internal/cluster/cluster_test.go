package cluster

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"reflect"
	"testing"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/visual"
)

func matrix(n int, seed int64) [][]float64 {
	r := rand.New(rand.NewSource(seed))
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := float64(r.Intn(12))
			m[i][j], m[j][i] = v, v
		}
	}
	return m
}

func fromMatrix(m [][]float64) PairFunc {
	return func(i, j int) float64 { return m[i][j] }
}

func pageRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestUnionFind(t *testing.T) {
	u := NewUnionFind(6)
	if !u.Union(0, 3) || !u.Union(3, 5) || u.Union(0, 5) {
		t.Fatal("Union reported wrong distinctness")
	}
	u.Union(1, 2)
	want := [][]int{{0, 3, 5}, {1, 2}, {4}}
	if got := u.Sets(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sets = %v, want %v", got, want)
	}
	if u.Find(5) != u.Find(0) || u.Find(4) == u.Find(0) {
		t.Error("Find disagrees with Sets")
	}
}

func TestClusterIsPartition(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		pages := pageRange(25)
		groups := Cluster(pages, fromMatrix(matrix(len(pages), seed)), 10)

		seen := make(map[int]int)
		for _, g := range groups {
			if len(g.Pages) == 0 {
				t.Fatal("empty group")
			}
			for _, p := range g.Pages {
				seen[p]++
			}
		}
		for _, p := range pages {
			if seen[p] != 1 {
				t.Fatalf("seed %d: page %d appears %d times", seed, p, seen[p])
			}
		}
		if len(seen) != len(pages) {
			t.Fatalf("seed %d: %d pages clustered, want %d", seed, len(seen), len(pages))
		}
	}
}

func TestThresholdMonotonic(t *testing.T) {
	pages := pageRange(20)
	sim := fromMatrix(matrix(len(pages), 7))
	prev := Cluster(pages, sim, 1)
	for th := 2.0; th <= 12; th++ {
		cur := Cluster(pages, sim, th)
		owner := make(map[int]int)
		for gi, g := range prev {
			for _, p := range g.Pages {
				owner[p] = gi
			}
		}
		for _, g := range cur {
			if len(g.Pages) > 0 {
				first := owner[g.Pages[0]]
				for _, p := range g.Pages {
					if owner[p] != first {
						t.Fatalf("threshold %v: group %v is not inside a group of the lower threshold", th, g.Pages)
					}
				}
			}
		}
		if len(cur) < len(prev) {
			t.Fatalf("threshold %v: %d groups, fewer than %d at the lower threshold", th, len(cur), len(prev))
		}
		prev = cur
	}
}

func TestSharedIdentityOrderIndependent(t *testing.T) {
	byPage := map[int]string{
		1: "4500001234_2023",
		2: "4500009999_2023",
		3: "4500001234_2023",
		4: constants.NoneFound,
		5: "4500001234_2023",
		6: constants.NoneFound,
	}
	orders := [][]int{
		{1, 2, 3, 4, 5, 6},
		{6, 5, 4, 3, 2, 1},
		{3, 6, 1, 5, 2, 4},
	}
	want := []Group{{Pages: []int{1, 3, 5}}, {Pages: []int{2}}, {Pages: []int{4}}, {Pages: []int{6}}}
	for _, order := range orders {
		sigs := make([]Signals, len(order))
		for i, p := range order {
			sigs[i] = Signals{Identity: byPage[p]}
		}
		got := Cluster(order, Composite(sigs, DefaultWeights(), DefaultLimits()), 5)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("order %v: groups = %v, want %v", order, got, want)
		}
	}
}

func TestClusterIdempotent(t *testing.T) {
	pages := pageRange(15)
	sim := fromMatrix(matrix(len(pages), 3))
	a := Cluster(pages, sim, 9)
	b := Cluster(pages, sim, 9)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("reclustering changed the partition: %v vs %v", a, b)
	}
}

func TestClusterParallelMatchesSerial(t *testing.T) {
	pages := pageRange(40)
	sim := fromMatrix(matrix(len(pages), 11))
	want := Cluster(pages, sim, 10)
	for _, workers := range []int{0, 1, 3, 16} {
		got, err := ClusterParallel(context.Background(), pages, sim, 10, workers)
		if err != nil {
			t.Fatalf("workers %d: %v", workers, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("workers %d: %v, want %v", workers, got, want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ClusterParallel(ctx, pages, sim, 10, 2); err == nil {
		t.Error("expected context error")
	}
}

func TestEmptyAndSingle(t *testing.T) {
	if got := Cluster(nil, nil, 5); len(got) != 0 {
		t.Errorf("Cluster(nil) = %v", got)
	}
	got := Cluster([]int{7}, func(int, int) float64 { return 100 }, 5)
	if len(got) != 1 || !reflect.DeepEqual(got[0].Pages, []int{7}) {
		t.Errorf("single page = %v", got)
	}
}

func TestComposite(t *testing.T) {
	white := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for i := range white.Pix {
		white.Pix[i] = 0xff
	}
	half := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			if x < 64 {
				half.Set(x, y, color.Black)
			} else {
				half.Set(x, y, color.White)
			}
		}
	}
	fw, fd := visual.NewFingerprint(white), visual.NewFingerprint(half)

	sigs := []Signals{
		{Identity: "a_2023", Codes: []string{"4711", "ls-1"}, Visual: fw},
		{Identity: "a_2023", Codes: []string{"ls-1"}, Visual: fw},
		{Identity: constants.NoneFound, Codes: []string{"9"}, Visual: fd},
		{Identity: constants.NoneFound},
		{Identity: "b_2023", Codes: []string{"ls-1"}, Visual: fw},
		{Identity: constants.NoneFound, Codes: []string{"ls-1"}},
	}
	sim := Composite(sigs, DefaultWeights(), DefaultLimits())

	tests := []struct {
		name string
		i, j int
		want float64
	}{
		{"identity, code and identical visuals", 0, 1, 10 + 5 + 2 + 2 + 1 + 1},
		{"unresolved identities never agree", 2, 3, 0},
		{"different visuals", 1, 2, 0},
		{"conflicting identities veto shared code and visuals", 1, 4, 0},
		{"unresolved page still votes on codes", 1, 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sim(tt.i, tt.j); got != tt.want {
				t.Errorf("sim(%d, %d) = %v, want %v", tt.i, tt.j, got, tt.want)
			}
		})
	}
}

func TestSegments(t *testing.T) {
	n := constants.NoneFound
	tests := []struct {
		name string
		ids  []string
		want []int
	}{
		{"empty", nil, nil},
		{"one document", []string{"a", "a", "a"}, []int{0}},
		{"identity changes", []string{"a", "a", "b", "a"}, []int{0, 2, 3}},
		{"unresolved pages split", []string{"a", n, "a", n, "b"}, []int{0, 1, 2, 3, 4}},
		{"leading unresolved", []string{n, "a", "a", "b"}, []int{0, 1, 3}},
		{"unresolved run", []string{"a", n, n, "a"}, []int{0, 1, 3}},
		{"empty identity is unresolved", []string{"", n, "a"}, []int{0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Segments(tt.ids); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Segments(%v) = %v, want %v", tt.ids, got, tt.want)
			}
		})
	}
}

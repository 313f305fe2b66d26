package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/features"
)

// ErrClusteringDegenerate is returned when no partition can be fitted.
var ErrClusteringDegenerate = errors.New("clustering degenerate")

// Config controls a k-means fit.
type Config struct {
	K             int
	Seed          int64
	NInit         int
	MaxIterations int
}

// DefaultConfig returns K=4 with a fixed seed.
func DefaultConfig() Config {
	return Config{
		K:             4,
		Seed:          42,
		NInit:         10,
		MaxIterations: 300,
	}
}

// State is a fitted standardization plus partition for one catalog.
// It is never modified after Fit returns.
type State struct {
	Scaler    *Scaler
	Centroids *mat.Dense
	Labels    []int

	// RequestedK is the configured cluster count; EffectiveK is the count
	// actually fitted after reduction to the number of distinct rows.
	RequestedK int
	EffectiveK int
	Inertia    float64
	Iterations int
}

// Reduced reports whether K was lowered to fit the catalog.
func (s *State) Reduced() bool {
	return s.EffectiveK < s.RequestedK
}

// Sizes returns the member count of every cluster.
func (s *State) Sizes() []int {
	sizes := make([]int, s.EffectiveK)
	for _, l := range s.Labels {
		sizes[l]++
	}
	return sizes
}

// Predict assigns an unscaled feature row to its nearest centroid.
func (s *State) Predict(row []float64) int {
	label, _ := nearest(s.Scaler.Transform(row), centroidRows(s.Centroids))
	return label
}

// Fit standardizes the matrix and fits k-means. K is reduced to the number of
// distinct standardized rows when the catalog cannot support it.
func Fit(ctx context.Context, m *features.Matrix, cfg Config) (*State, error) {
	if cfg.K < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrClusteringDegenerate, cfg.K)
	}
	if m == nil || m.Rows() == 0 {
		return nil, fmt.Errorf("%w: empty feature matrix", ErrClusteringDegenerate)
	}
	if cfg.NInit < 1 {
		cfg.NInit = 1
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}

	scaler := FitScaler(m.Data)
	points := scaler.TransformAll(m.Data)

	k := cfg.K
	if distinct := countDistinct(points); distinct < k {
		k = distinct
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var best *run
	for i := 0; i < cfg.NInit; i++ {
		r, err := lloyd(ctx, points, seedCentroids(points, k, rng), cfg.MaxIterations)
		if err != nil {
			return nil, err
		}
		if best == nil || r.inertia < best.inertia {
			best = r
		}
	}

	k = len(best.centroids)
	_, cols := m.Data.Dims()
	flat := make([]float64, 0, k*cols)
	for _, c := range best.centroids {
		flat = append(flat, c...)
	}

	return &State{
		Scaler:     scaler,
		Centroids:  mat.NewDense(k, cols, flat),
		Labels:     best.labels,
		RequestedK: cfg.K,
		EffectiveK: k,
		Inertia:    best.inertia,
		Iterations: best.iterations,
	}, nil
}

type run struct {
	centroids  [][]float64
	labels     []int
	inertia    float64
	iterations int
}

// seedCentroids picks k starting points with k-means++ weighting.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(n)]))

	d2 := make([]float64, n)
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			_, d := nearest(p, centroids)
			d2[i] = d
			total += d
		}

		pick := -1
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, d := range d2 {
				if d == 0 {
					continue
				}
				cum += d
				if cum >= target {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			// rounding left the target past the last weight
			for i := n - 1; i >= 0; i-- {
				if d2[i] > 0 {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			break
		}
		centroids = append(centroids, clone(points[pick]))
	}
	return centroids
}

func lloyd(ctx context.Context, points, centroids [][]float64, maxIter int) (*run, error) {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	iterations := 0
	for iterations < maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations++

		changed := false
		for i, p := range points {
			l, _ := nearest(p, centroids)
			if l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, len(centroids))
		sums := make([][]float64, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, len(points[0]))
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range centroids {
			// an empty cluster keeps its previous centroid
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}
	}

	var inertia float64
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		inertia += d * d
	}

	return &run{
		centroids:  centroids,
		labels:     labels,
		inertia:    inertia,
		iterations: iterations,
	}, nil
}

// nearest returns the closest centroid and the squared distance to it.
// Ties go to the lowest index.
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(p, centroid, 2)
		if d*d < bestDist {
			best, bestDist = c, d*d
		}
	}
	return best, bestDist
}

func countDistinct(points [][]float64) int {
	var reps [][]float64
	for _, p := range points {
		dup := false
		for _, r := range reps {
			if floats.Equal(p, r) {
				dup = true
				break
			}
		}
		if !dup {
			reps = append(reps, p)
		}
	}
	return len(reps)
}

func centroidRows(c *mat.Dense) [][]float64 {
	rows, _ := c.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(nil, i, c)
	}
	return out
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

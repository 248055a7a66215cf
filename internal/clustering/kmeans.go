package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/stats"
	"rfmseg/pkg/contracts/domain"
)

// Options controls the k-means restart policy
type Options struct {
	Seed      int64
	Restarts  int
	MaxIter   int
	Tolerance float64
	Workers   int
}

// DefaultOptions mirrors the defaults of the clustering configuration
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Clustering)
}

// OptionsFromConfig extracts the restart policy from the clustering section
func OptionsFromConfig(cfg config.ClusteringConfig) Options {
	return Options{
		Seed:      cfg.Seed,
		Restarts:  cfg.Restarts,
		MaxIter:   cfg.MaxIter,
		Tolerance: cfg.Tolerance,
		Workers:   cfg.WorkerCount(),
	}
}

func (o Options) validate(op string) error {
	switch {
	case o.Restarts < 1:
		return apperrors.NewConfigError(op, fmt.Sprintf("restarts must be >= 1, got %d", o.Restarts), nil)
	case o.MaxIter < 1:
		return apperrors.NewConfigError(op, fmt.Sprintf("max_iter must be >= 1, got %d", o.MaxIter), nil)
	case o.Tolerance < 0 || math.IsNaN(o.Tolerance):
		return apperrors.NewConfigError(op, fmt.Sprintf("tolerance must be >= 0, got %v", o.Tolerance), nil)
	}
	return nil
}

// Model is the best k-means solution found over all restarts
type Model struct {
	K          int
	Centers    [][]float64
	Labels     []int
	Inertia    float64
	Iterations int
	Restart    int
}

// ClusterSizes counts the points assigned to each label
func (m *Model) ClusterSizes() []int {
	sizes := make([]int, m.K)
	for _, l := range m.Labels {
		sizes[l]++
	}
	return sizes
}

// Matrix extracts the standardized vectors in row order
func Matrix(features []domain.ScaledFeatures) [][]float64 {
	points := make([][]float64, len(features))
	for i, f := range features {
		points[i] = f.Vector()
	}
	return points
}

// FitKMeans runs Options.Restarts independent k-means fits and keeps the one with
// the lowest inertia.
func FitKMeans(ctx context.Context, points [][]float64, k int, opts Options) (*Model, error) {
	const op = "clustering.FitKMeans"

	if err := opts.validate(op); err != nil {
		return nil, err
	}
	n := len(points)
	if n == 0 {
		return nil, apperrors.NewInputError(op, "no points to cluster", nil)
	}
	if k < 1 || k > n {
		return nil, apperrors.NewConfigError(op, fmt.Sprintf("k must be in [1, %d], got %d", n, k), nil)
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, apperrors.NewInputError(op, fmt.Sprintf("point %d has %d dimensions, want %d", i, len(p), dim), nil)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.NewNumericError(op, fmt.Sprintf("point %d has a non-finite coordinate", i))
			}
		}
	}

	tol := scaledTolerance(points, opts.Tolerance)

	results := make([]*Model, opts.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for r := 0; r < opts.Restarts; r++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(r)))
			m, err := lloyd(gctx, points, k, rng, opts.MaxIter, tol)
			if err != nil {
				return err
			}
			m.Restart = r
			results[r] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperrors.NewCancelledError(op, ctxErr)
		}
		return nil, err
	}

	best := results[0]
	for _, m := range results[1:] {
		if m.Inertia < best.Inertia {
			best = m
		}
	}
	return best, nil
}

// scaledTolerance expresses tol relative to the mean per-feature variance
func scaledTolerance(points [][]float64, tol float64) float64 {
	dim := len(points[0])
	column := make([]float64, len(points))
	total := 0.0
	for d := 0; d < dim; d++ {
		for i, p := range points {
			column[i] = p[d]
		}
		total += stats.Variance(column)
	}
	return tol * total / float64(dim)
}

// lloyd runs one seeded k-means++ initialization followed by Lloyd iterations
func lloyd(ctx context.Context, points [][]float64, k int, rng *rand.Rand, maxIter int, tol float64) (*Model, error) {
	centers := initPlusPlus(points, k, rng)
	labels := make([]int, len(points))
	dist := make([]float64, len(points))

	iterations := 0
	for iterations < maxIter {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations++

		assign(points, centers, labels, dist)
		next := recompute(points, k, labels, dist)

		shift := 0.0
		for c := range centers {
			shift += sqDist(centers[c], next[c])
		}
		centers = next
		if shift <= tol {
			break
		}
	}

	inertia := assign(points, centers, labels, dist)
	return &Model{
		K:          k,
		Centers:    centers,
		Labels:     labels,
		Inertia:    inertia,
		Iterations: iterations,
	}, nil
}

// initPlusPlus seeds k centers with greedy k-means++: each new center is the
// best of several D²-weighted candidates.
func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	trials := 2 + int(math.Log(float64(k)))

	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.IntN(n)]))

	closest := make([]float64, n)
	potential := 0.0
	for i, p := range points {
		closest[i] = sqDist(p, centers[0])
		potential += closest[i]
	}

	candidate := make([]float64, n)
	bestClosest := make([]float64, n)
	for len(centers) < k {
		bestIdx, bestPotential := -1, math.Inf(1)
		for t := 0; t < trials; t++ {
			idx := sampleWeighted(closest, potential, rng)
			sum := 0.0
			for i, p := range points {
				candidate[i] = math.Min(closest[i], sqDist(p, points[idx]))
				sum += candidate[i]
			}
			if sum < bestPotential {
				bestIdx, bestPotential = idx, sum
				copy(bestClosest, candidate)
			}
		}
		centers = append(centers, clone(points[bestIdx]))
		copy(closest, bestClosest)
		potential = bestPotential
	}
	return centers
}

// sampleWeighted draws an index with probability proportional to weights,
// falling back to a uniform draw when every weight is zero.
func sampleWeighted(weights []float64, total float64, rng *rand.Rand) int {
	if total <= 0 {
		return rng.IntN(len(weights))
	}
	target := rng.Float64() * total
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if acc > target {
			return i
		}
	}
	return last
}

// assign labels every point with its nearest center, lowest index on ties,
// storing the squared distance and returning the total.
func assign(points, centers [][]float64, labels []int, dist []float64) float64 {
	inertia := 0.0
	for i, p := range points {
		best, bestDist := 0, sqDist(p, centers[0])
		for c := 1; c < len(centers); c++ {
			if d := sqDist(p, centers[c]); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		dist[i] = bestDist
		inertia += bestDist
	}
	return inertia
}

// recompute returns the mean of each cluster. An empty cluster takes over the
// point farthest from its current center, and labels are updated to match.
func recompute(points [][]float64, k int, labels []int, dist []float64) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	counts := make([]int, k)
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}

	var empty []int
	for c, n := range counts {
		if n == 0 {
			empty = append(empty, c)
		}
	}
	if len(empty) > 0 {
		order := make([]int, len(points))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] > dist[order[b]] })

		next := 0
		for _, c := range empty {
			for next < len(order) && counts[labels[order[next]]] <= 1 {
				next++
			}
			if next == len(order) {
				break
			}
			i := order[next]
			next++
			from := labels[i]
			counts[from]--
			for d, v := range points[i] {
				sums[from][d] -= v
				sums[c][d] = v
			}
			counts[c] = 1
			labels[i] = c
			dist[i] = 0
		}
	}

	centers := make([][]float64, k)
	for c := range centers {
		centers[c] = make([]float64, dim)
		if counts[c] == 0 {
			continue
		}
		for d := range centers[c] {
			centers[c][d] = sums[c][d] / float64(counts[c])
		}
	}
	return centers
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}

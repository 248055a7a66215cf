package clustering

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	apperrors "rfmseg/internal/errors"
)

const silhouetteBlock = 256

// Silhouette returns the mean silhouette coefficient of a labeling using
// Euclidean distances. A point alone in its cluster scores 0. The score is
// undefined, and an error is returned, unless the labeling has between 2 and
// n-1 non-empty clusters.
func Silhouette(ctx context.Context, points [][]float64, labels []int, k, workers int) (float64, error) {
	const op = "clustering.Silhouette"

	n := len(points)
	if n != len(labels) {
		return 0, apperrors.NewInputError(op, fmt.Sprintf("%d points but %d labels", n, len(labels)), nil)
	}

	counts := make([]int, k)
	for i, l := range labels {
		if l < 0 || l >= k {
			return 0, apperrors.NewInputError(op, fmt.Sprintf("label %d of point %d outside [0, %d)", l, i, k), nil)
		}
		counts[l]++
	}
	nonEmpty := 0
	for _, c := range counts {
		if c > 0 {
			nonEmpty++
		}
	}
	if nonEmpty < 2 || nonEmpty > n-1 {
		return 0, apperrors.NewNumericError(op, fmt.Sprintf(
			"silhouette undefined for %d non-empty clusters over %d points", nonEmpty, n)).
			WithContext("k", k)
	}

	scores := make([]float64, n)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for start := 0; start < n; start += silhouetteBlock {
		end := min(start+silhouetteBlock, n)
		g.Go(func() error {
			sums := make([]float64, k)
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				scores[i] = pointSilhouette(points, labels, counts, sums, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, apperrors.NewCancelledError(op, err)
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total / float64(n), nil
}

func pointSilhouette(points [][]float64, labels, counts []int, sums []float64, i int) float64 {
	own := labels[i]
	if counts[own] <= 1 {
		return 0
	}
	for c := range sums {
		sums[c] = 0
	}
	for j, p := range points {
		if j == i {
			continue
		}
		sums[labels[j]] += math.Sqrt(sqDist(points[i], p))
	}

	a := sums[own] / float64(counts[own]-1)
	b := math.Inf(1)
	for c, count := range counts {
		if c == own || count == 0 {
			continue
		}
		b = math.Min(b, sums[c]/float64(count))
	}

	denom := math.Max(a, b)
	if denom == 0 {
		return 0
	}
	return (b - a) / denom
}

// Package clustering implements seeded k-means with best-of-N restarts, the
// mean silhouette coefficient, the sweep over candidate cluster counts and the
// final fit that labels every customer.
//
// Restart r of a fit draws from a PCG generator seeded with (seed, r), so a
// fit is a pure function of its points, k, seed and restart count. Restarts
// run concurrently but each writes only its own result slot and the reduction
// walks the slots in index order keeping the lowest inertia (ties go to the
// lower index), which makes the outcome independent of scheduling.
//
// Label identity is arbitrary: cluster 0 at one k has no relation to cluster 0
// at another k or under another seed.
package clustering

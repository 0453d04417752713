package montecarlo

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProgressCallback is called after each completed path
type ProgressCallback func(done, total int)

// GenerateOptions controls path generation
type GenerateOptions struct {
	// Seed fixes the random stream. Every value, zero included, is a valid seed.
	Seed int64
	// Workers is the number of goroutines paths are spread over (min 1).
	Workers int
	// Progress may be called concurrently from several workers.
	Progress ProgressCallback
}

// Matrix holds simulated prices: Steps rows (time) by Paths columns.
type Matrix struct {
	Steps int
	Paths int
	data  []float64 // row-major
}

func newMatrix(steps, paths int) *Matrix {
	return &Matrix{
		Steps: steps,
		Paths: paths,
		data:  make([]float64, steps*paths),
	}
}

// At returns the simulated price of path after step+1 steps
func (m *Matrix) At(step, path int) float64 {
	return m.data[step*m.Paths+path]
}

// Row returns a copy of all path prices at step
func (m *Matrix) Row(step int) []float64 {
	row := make([]float64, m.Paths)
	copy(row, m.data[step*m.Paths:(step+1)*m.Paths])
	return row
}

// Path returns a copy of one simulated path
func (m *Matrix) Path(path int) []float64 {
	out := make([]float64, m.Steps)
	for t := 0; t < m.Steps; t++ {
		out[t] = m.data[t*m.Paths+path]
	}
	return out
}

// Ending returns the ending-price distribution (the last row)
func (m *Matrix) Ending() []float64 {
	return m.Row(m.Steps - 1)
}

// Rows returns the matrix as Steps slices of Paths values
func (m *Matrix) Rows() [][]float64 {
	rows := make([][]float64, m.Steps)
	for t := range rows {
		rows[t] = m.Row(t)
	}
	return rows
}

// FixedSeed returns a pointer to seed, for Params.Seed
func FixedSeed(seed int64) *int64 {
	return &seed
}

// ResolveSeed returns *seed, or a clock-derived seed when seed is nil
func ResolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return time.Now().UnixNano()
}

// GeneratePaths simulates paths independent price paths of horizon steps each,
// starting at p0. Every step draws r ~ N(0, sigma) and moves the price to
// price*(1+r). The update is arithmetic compounding, not geometric Brownian motion.
//
// For a fixed non-zero seed the result does not depend on opts.Workers: each path
// draws from its own generator whose seed is taken, in path order, from a master
// generator seeded with opts.Seed.
//
// If ctx is cancelled the partial matrix is discarded and ctx.Err() is returned.
func GeneratePaths(ctx context.Context, p0, sigma float64, horizon, paths int, opts GenerateOptions) (*Matrix, error) {
	if err := validatePathParams(p0, sigma, horizon, paths); err != nil {
		return nil, err
	}

	seeds := pathSeeds(opts.Seed, paths)
	m := newMatrix(horizon, paths)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > paths {
		workers = paths
	}
	chunk := (paths + workers - 1) / workers

	var done int64
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < paths; lo += chunk {
		hi := min(lo+chunk, paths)
		g.Go(func() error {
			for j := lo; j < hi; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				m.fillPath(j, p0, sigma, newRand(seeds[j]))

				n := atomic.AddInt64(&done, 1)
				if opts.Progress != nil {
					opts.Progress(int(n), paths)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// errgroup only reports worker errors; a cancel after the last path still voids the run
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// fillPath writes column path. Workers own disjoint columns, so no locking.
func (m *Matrix) fillPath(path int, p0, sigma float64, rng *rand.Rand) {
	price := p0
	for t := 0; t < m.Steps; t++ {
		r := rng.NormFloat64() * sigma
		price *= 1 + r
		m.data[t*m.Paths+path] = price
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func pathSeeds(seed int64, paths int) []int64 {
	master := newRand(seed)
	seeds := make([]int64, paths)
	for i := range seeds {
		seeds[i] = master.Int63()
	}
	return seeds
}

func validatePathParams(p0, sigma float64, horizon, paths int) error {
	if !isPositive(p0) {
		return invalid("last price", p0, "must be a finite positive number")
	}
	if sigma < 0 || !isFinite(sigma) {
		return invalid("volatility", sigma, "must be a finite non-negative number")
	}
	if horizon <= 0 {
		return invalid("horizon", horizon, "must be positive")
	}
	if paths <= 0 {
		return invalid("paths", paths, "must be positive")
	}
	return nil
}

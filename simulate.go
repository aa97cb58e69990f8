package softbody

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// minChunk is the smallest number of elements handed to one goroutine.
const minChunk = 256

// Step advances the body by dt seconds. Spring forces are computed for every
// spring in parallel and then added to both endpoints in spring order.
// Gravity is then applied and every non fixed particle is integrated and
// collided against the ground plane y = groundY, bouncing with the given
// restitution. Springs added since the previous Step are included.
func (b *Body) Step(dt, groundY, restitution float64) {
	b.resizeScratch()

	// Scatter: each goroutine writes only its own springs' slots.
	b.parallel(len(b.springs), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			s := b.springs[i]
			f := s.Force(b.particles[s.a].Pos, b.particles[s.b].Pos)
			b.forceA[i] = f
			b.forceB[i] = r3.Scale(-1, f)
		}
	})

	// Gather.
	for i, s := range b.springs {
		b.particles[s.a].AddForce(b.forceA[i])
		b.particles[s.b].AddForce(b.forceB[i])
	}

	b.parallel(len(b.particles), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p := &b.particles[i]
			p.AddForce(r3.Vec{Y: -b.gravity * p.Mass})
		}
	})

	b.parallel(len(b.particles), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			b.particles[i].Step(dt, groundY, restitution)
		}
	})
}

// parallel calls fn over contiguous chunks of [0, n) on up to b.workers
// goroutines and returns when every call has returned.
func (b *Body) parallel(n int, fn func(lo, hi int)) {
	forChunks(n, b.workers, fn)
}

func forChunks(n, workers int, fn func(lo, hi int)) {
	if n == 0 {
		return
	}
	chunks := workers
	if limit := (n + minChunk - 1) / minChunk; chunks > limit {
		chunks = limit
	}
	if chunks <= 1 {
		fn(0, n)
		return
	}
	size := (n + chunks - 1) / chunks
	// fn cannot fail; the group only bounds concurrency.
	var group errgroup.Group
	group.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		group.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	group.Wait()
}

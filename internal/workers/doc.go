/*
Package workers sizes and bounds the background fan-out used by
housekeeping.

Worker counts derive from GOMAXPROCS, which Go sets from the container CPU
limit, rather than runtime.NumCPU, which reports host CPUs:

	n := workers.ForIO(16) // 2 per CPU, at most 16

Operators can pin the count with HOUSEKEEPING_WORKERS. The value is still
capped by the limit passed by the caller.

A [Group] runs submitted functions with at most n in flight. Submission does
not block, so callers can fire background work and continue:

	g := workers.NewGroup(workers.ForIO(16))
	for _, r := range records {
		g.Go(func() { regenerate(r) })
	}
	// later
	g.Wait()
*/
package workers

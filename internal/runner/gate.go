package runner

import "context"

// gate is a counting semaphore bounding concurrent request executions.
// Slots are acquired only from the dispatch goroutine, so grants follow
// tick order; releases may come from any worker.
type gate struct {
	slots chan struct{}
}

func newGate(capacity int) *gate {
	return &gate{slots: make(chan struct{}, capacity)}
}

// acquire blocks until a slot is free or ctx is done.
func (g *gate) acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) release() {
	<-g.slots
}

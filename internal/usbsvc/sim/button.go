package sim

import "context"

// Button is an edge-driven input line. Press and Release feed edges;
// the wait methods consume them in order.
type Button struct {
	edges chan bool
}

func NewButton() *Button {
	return &Button{edges: make(chan bool, 16)}
}

func (b *Button) Press() {
	b.edges <- true
}

func (b *Button) Release() {
	b.edges <- false
}

func (b *Button) WaitForActive(ctx context.Context) error {
	return b.wait(ctx, true)
}

func (b *Button) WaitForInactive(ctx context.Context) error {
	return b.wait(ctx, false)
}

func (b *Button) wait(ctx context.Context, active bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case edge := <-b.edges:
			if edge == active {
				return nil
			}
		}
	}
}

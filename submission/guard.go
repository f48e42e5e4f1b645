package submission

type guardOp struct {
	acquire bool
	key     string
	result  chan<- bool
}

// Guard tracks keys that are being processed. A single goroutine owns the
// set; callers talk to it over a channel.
type Guard struct {
	ops  chan guardOp
	done chan struct{}
}

func NewGuard() *Guard {
	g := &Guard{
		ops:  make(chan guardOp),
		done: make(chan struct{}),
	}
	go g.run()
	return g
}

func (g *Guard) run() {
	inFlight := make(map[string]bool)
	for {
		select {
		case req := <-g.ops:
			if req.acquire {
				req.result <- !inFlight[req.key]
				inFlight[req.key] = true
			} else {
				delete(inFlight, req.key)
			}
		case <-g.done:
			return
		}
	}
}

// Acquire reports false when key is already held or the guard is closed.
func (g *Guard) Acquire(key string) bool {
	result := make(chan bool, 1)
	select {
	case g.ops <- guardOp{true, key, result}:
		return <-result
	case <-g.done:
		return false
	}
}

// Release is a no-op once the guard is closed.
func (g *Guard) Release(key string) {
	select {
	case g.ops <- guardOp{false, key, nil}:
	case <-g.done:
	}
}

func (g *Guard) Close() {
	close(g.done)
}

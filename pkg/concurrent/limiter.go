package concurrent

type Limiter interface {
	// TryAdd enqueue one working credential if there is room and reports whether it did.
	TryAdd() bool
	// Done dequeue one working credential.
	Done()
}

type limiter struct {
	working chan struct{}
}

func NewLimiter(maxConcurrency int) Limiter {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &limiter{
		working: make(chan struct{}, maxConcurrency),
	}
}

func (in *limiter) TryAdd() bool {
	select {
	case in.working <- struct{}{}:
		return true
	default:
		return false
	}
}

func (in *limiter) Done() {
	<-in.working
}

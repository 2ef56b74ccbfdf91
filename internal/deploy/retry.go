package deploy

// retryPolicy is the per-call retry budget.
// It is a snapshot of the session budget, so one call exhausting its
// retries leaves later calls with the full budget.
type retryPolicy struct {
	remaining int
}

func newRetryPolicy(budget *int) *retryPolicy {
	p := new(retryPolicy)
	if budget != nil && *budget > 0 {
		p.remaining = *budget
	}

	return p
}

// allow reports whether another attempt may be made and consumes one retry if so.
func (p *retryPolicy) allow() bool {
	if p.remaining <= 0 {
		return false
	}

	p.remaining--

	return true
}

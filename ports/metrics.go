package ports

// AuthMetrics records the outcome of each authentication attempt.
type AuthMetrics interface {
	ObserveAttempt(flow, outcome string)
}

package resilience

import "time"

// RetryPolicy configures how often a transient vendor failure is retried.
type RetryPolicy struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

func (p RetryPolicy) backoff() backoff {
	b := backoff{
		attempts:   3,
		initial:    500 * time.Millisecond,
		ceiling:    30 * time.Second,
		multiplier: 2,
		jitter:     max(p.JitterFraction, 0),
	}
	if p.MaxAttempts > 0 {
		b.attempts = p.MaxAttempts
	}
	if p.InitialBackoffMs > 0 {
		b.initial = time.Duration(p.InitialBackoffMs) * time.Millisecond
	}
	if p.MaxBackoffMs > 0 {
		b.ceiling = time.Duration(p.MaxBackoffMs) * time.Millisecond
	}
	if p.Multiplier > 0 {
		b.multiplier = p.Multiplier
	}
	return b
}

// CircuitPolicy configures when a vendor is cut off and for how long.
type CircuitPolicy struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

func (p CircuitPolicy) limits() (threshold int, cooldown time.Duration) {
	threshold, cooldown = 5, 30*time.Second
	if p.FailureThreshold > 0 {
		threshold = p.FailureThreshold
	}
	if p.ResetTimeoutSecs > 0 {
		cooldown = time.Duration(p.ResetTimeoutSecs) * time.Second
	}
	return threshold, cooldown
}

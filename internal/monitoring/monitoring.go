// Package monitoring watches batch outcomes and the dead-letter queue and
// posts alerts to a webhook when they cross configured thresholds.
package monitoring

import "time"

// Config holds alert thresholds and the delivery webhook. A zero threshold
// disables its alert.
type Config struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinLeadsForRate      int     `yaml:"min_leads_for_rate" mapstructure:"min_leads_for_rate"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	DLQDepthThreshold    int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
	StallAfterMins       int     `yaml:"stall_after_mins" mapstructure:"stall_after_mins"`
}

// Enabled reports whether alerts have somewhere to go.
func (c Config) Enabled() bool { return c.WebhookURL != "" }

// StallAfter is how long a PROCESSING batch may go without an update before
// it is reported as stalled.
func (c Config) StallAfter() time.Duration {
	return time.Duration(c.StallAfterMins) * time.Minute
}

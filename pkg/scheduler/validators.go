package scheduler

type ControlPayload struct {
	Action string `json:"action" validate:"required,oneof=start stop"`
}

// UpdateConfigPayload carries partial scheduler settings; omitted
// fields keep their current values.
type UpdateConfigPayload struct {
	Enabled                    *bool `json:"enabled,omitempty"`
	IntervalSeconds            *int  `json:"interval_seconds,omitempty" validate:"omitempty,min=1,max=86400"`
	BatchSize                  *int  `json:"batch_size,omitempty" validate:"omitempty,min=1,max=1000"`
	MaxRetries                 *int  `json:"max_retries,omitempty" validate:"omitempty,min=1,max=10"`
	HealthCheckIntervalSeconds *int  `json:"health_check_interval_seconds,omitempty" validate:"omitempty,min=1,max=86400"`
	QueueWarnThreshold         *int  `json:"queue_warn_threshold,omitempty" validate:"omitempty,min=1"`
	FailureWarnThreshold       *int  `json:"failure_warn_threshold,omitempty" validate:"omitempty,min=1"`
}

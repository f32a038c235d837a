package resilience

import "time"

// Policy bounds how often an operation is retried and when its breaker opens.
// Zero fields are filled from a preset, see Fill.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	Breaker BreakerPolicy
}

type BreakerPolicy struct {
	Enabled bool
	// MinRequests is the number of calls observed before the failure ratio is evaluated.
	MinRequests   uint32
	FailureRatio  float64
	OpenTimeout   time.Duration
	HalfOpenCalls uint32
}

// CommandPolicy is for one-shot commands that make a handful of calls.
func CommandPolicy() Policy {
	return Policy{
		MaxAttempts:    2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   3,
			FailureRatio:  0.6,
			OpenTimeout:   10 * time.Second,
			HalfOpenCalls: 1,
		},
	}
}

// ServePolicy is for the preview server, which fetches images until stopped.
func ServePolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   5,
			FailureRatio:  0.5,
			OpenTimeout:   30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// Fill returns p with every unset numeric field taken from preset.
// Breaker.Enabled is never filled.
func (p Policy) Fill(preset Policy) Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = preset.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = preset.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = preset.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = preset.Multiplier
	}

	b := &p.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = preset.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = preset.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = preset.Breaker.OpenTimeout
	}
	if b.HalfOpenCalls == 0 {
		b.HalfOpenCalls = preset.Breaker.HalfOpenCalls
	}
	return p
}

func (p Policy) sanitized() Policy {
	p = p.Fill(CommandPolicy())
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// delay is the wait before retry number n, counted from 1.
func (p Policy) delay(n int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

package rate

import "time"

// Window represents a provider rate-limit bucket.
type Window int

const (
	Minute Window = iota
	Day
)

func (w Window) String() string {
	switch w {
	case Minute:
		return "minute"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// Duration returns the refill period of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case Minute:
		return time.Minute
	case Day:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Declaration defines a provider's call budget and failure cooldown.
type Declaration struct {
	provider string
	limits   map[Window]int
	cooldown time.Duration
}

// Provider creates a new declaration for a provider.
func Provider(name string) Declaration {
	return Declaration{provider: name}
}

func (d Declaration) ProviderName() string {
	return d.provider
}

func (d Declaration) MaxRequestsPer(window Window, limit int) Declaration {
	if d.limits == nil {
		d.limits = make(map[Window]int)
	}
	d.limits[window] = limit
	return d
}

// CooldownAfterFailure blocks all calls for the given duration after a
// recorded failure. The vendor cloud throttles hard after bad sign-ins.
func (d Declaration) CooldownAfterFailure(cooldown time.Duration) Declaration {
	d.cooldown = cooldown
	return d
}

func (d Declaration) Limits() map[Window]int {
	return d.limits
}

func (d Declaration) FailureCooldown() time.Duration {
	return d.cooldown
}

func (d Declaration) HasLimits() bool {
	return len(d.limits) > 0
}

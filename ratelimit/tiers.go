package ratelimit

import "time"

// Tier names used by call sites and configuration overrides.
const (
	TierAuth          = "auth"
	TierPasswordReset = "password-reset"
	TierPasswordCheck = "password-check"
	TierAPI           = "api"
	TierRead          = "read"
	TierWrite         = "write"
	TierExpensive     = "expensive"
	TierUpload        = "upload"
)

// Tier is a named limit/window pair. The name namespaces the counter so two
// tiers never share a window for the same client.
type Tier struct {
	Name string
	Config
}

// Tiers maps a tier name to its limit/window pair.
type Tiers map[string]Config

// DefaultTiers returns the compiled-in tiers.
func DefaultTiers() Tiers {
	return Tiers{
		TierAuth:          {Limit: 5, Window: 15 * time.Minute},
		TierPasswordReset: {Limit: 3, Window: 15 * time.Minute},
		TierPasswordCheck: {Limit: 20, Window: 15 * time.Minute},
		TierAPI:           {Limit: 100, Window: time.Minute},
		TierRead:          {Limit: 300, Window: time.Minute},
		TierWrite:         {Limit: 30, Window: time.Minute},
		TierExpensive:     {Limit: 10, Window: time.Hour},
		TierUpload:        {Limit: 100, Window: time.Hour},
	}
}

// Get returns the named tier, falling back to the api tier's limits for
// unknown names.
func (t Tiers) Get(name string) Tier {
	if cfg, ok := t[name]; ok {
		return Tier{Name: name, Config: cfg}
	}
	if cfg, ok := t[TierAPI]; ok {
		return Tier{Name: name, Config: cfg}
	}
	return Tier{Name: name, Config: DefaultTiers()[TierAPI]}
}

// Merge returns a copy of t with overrides applied. Overrides with a
// non-positive limit or window are ignored.
func (t Tiers) Merge(overrides map[string]Config) Tiers {
	out := make(Tiers, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		if v.Limit <= 0 || v.Window <= 0 {
			continue
		}
		out[k] = v
	}
	return out
}

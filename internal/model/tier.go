package model

import "fmt"

// Tier is the most severe sigma level breached by a day's return.
type Tier int

const (
	TierNormal Tier = iota
	TierSigma1
	TierSigma2
	TierSigma3
)

var tierNames = map[Tier]string{
	TierNormal: "normal",
	TierSigma1: "sigma1",
	TierSigma2: "sigma2",
	TierSigma3: "sigma3",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalText lets tiers appear by name in JSON and YAML.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses the name produced by MarshalText.
func (t *Tier) UnmarshalText(b []byte) error {
	for k, v := range tierNames {
		if v == string(b) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", string(b))
}

// Breached reports whether the tier is an alert tier.
func (t Tier) Breached() bool { return t > TierNormal }

package dose

import (
	"fmt"
	"math"
	"strings"
)

// Gender selects the biomechanical parameter set
type Gender int

const (
	Male Gender = iota
	Female
	// Other averages the male and female intermediate quantities
	Other
)

// String returns the lowercase gender name
func (g Gender) String() string {
	switch g {
	case Male:
		return "male"
	case Female:
		return "female"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("Gender(%d)", int(g))
	}
}

// Valid reports whether g is one of the three recognised variants
func (g Gender) Valid() bool {
	return g == Male || g == Female || g == Other
}

// ParseGender accepts "male", "female" and "other" in any case, plus the
// legacy numeric aliases "1" (male) and "0" (female)
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "1":
		return Male, nil
	case "female", "0":
		return Female, nil
	case "other":
		return Other, nil
	default:
		return 0, fmt.Errorf("%w: %q (want male, female or other)", ErrUnknownGender, s)
	}
}

// GenderFromCode maps the legacy numeric selector: 1 is male, 0 is female
func GenderFromCode(code int) (Gender, error) {
	switch code {
	case 1:
		return Male, nil
	case 0:
		return Female, nil
	default:
		return 0, fmt.Errorf("%w: code %d (want 1 for male or 0 for female)", ErrUnknownGender, code)
	}
}

// MarshalText implements encoding.TextMarshaler
func (g Gender) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGender, int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (g *Gender) UnmarshalText(text []byte) error {
	parsed, err := ParseGender(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Profile holds the constants of one biomechanical parameter set
type Profile struct {
	ReferenceF0  float64 // Hz, scales the threshold-pressure and contact-time models
	Amplitude    float64 // tissue-displacement coefficient
	ContactTime  float64 // contact-time numerator, s
	ContactSlope float64 // contact-time dependence on sqrt(F0/ReferenceF0)
	Damping      float64 // damping numerator, divided by F0
}

var (
	MaleProfile = Profile{
		ReferenceF0:  120,
		Amplitude:    0.016,
		ContactTime:  0.0158,
		ContactSlope: 2.15,
		Damping:      5.4,
	}
	FemaleProfile = Profile{
		ReferenceF0:  190,
		Amplitude:    0.010,
		ContactTime:  0.01063,
		ContactSlope: 1.69,
		Damping:      1.4,
	}
)

// Intermediates are the per-frame model quantities
type Intermediates struct {
	ThresholdPressure float64 // Pth
	LungPressure      float64 // Pl
	Amplitude         float64 // A, already multiplied by the time step
	ContactTime       float64 // T
	Damping           float64 // eta
}

const tiny = 1e-12

// Evaluate computes the intermediates for one frame
func (p Profile) Evaluate(f0, spl, dt float64) Intermediates {
	ratio := f0 / p.ReferenceF0
	pth := 0.14 + 0.06*ratio*ratio
	pl := pth + math.Pow(10, (spl-72.48)/27.3)
	excess := max((pl-pth)/max(pth, tiny), 0)

	return Intermediates{
		ThresholdPressure: pth,
		LungPressure:      pl,
		Amplitude:         dt * p.Amplitude * math.Sqrt(excess),
		ContactTime:       p.ContactTime / (1 + p.ContactSlope*math.Sqrt(ratio)),
		Damping:           p.Damping / max(f0, tiny),
	}
}

// Evaluate computes the intermediates for one frame under g. Other
// evaluates the male and female profiles and averages each quantity.
func (g Gender) Evaluate(f0, spl, dt float64) (Intermediates, error) {
	switch g {
	case Male:
		return MaleProfile.Evaluate(f0, spl, dt), nil
	case Female:
		return FemaleProfile.Evaluate(f0, spl, dt), nil
	case Other:
		m := MaleProfile.Evaluate(f0, spl, dt)
		f := FemaleProfile.Evaluate(f0, spl, dt)
		return Intermediates{
			ThresholdPressure: 0.5 * (m.ThresholdPressure + f.ThresholdPressure),
			LungPressure:      0.5 * (m.LungPressure + f.LungPressure),
			Amplitude:         0.5 * (m.Amplitude + f.Amplitude),
			ContactTime:       0.5 * (m.ContactTime + f.ContactTime),
			Damping:           0.5 * (m.Damping + f.Damping),
		}, nil
	default:
		return Intermediates{}, fmt.Errorf("%w: %d", ErrUnknownGender, int(g))
	}
}

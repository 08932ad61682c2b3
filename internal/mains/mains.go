// Package mains detects the local electrical mains frequency from the system
// timezone and checks pitch tracks for hum harmonics.
package mains

import (
	"math"
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Frequency returns the local mains frequency in Hz (50 or 60).
// Returns 50Hz if detection fails or timezone is ambiguous.
func Frequency() int {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return 50 // Default fallback
	}
	return FrequencyForTimezone(timezone)
}

// FrequencyForTimezone returns the mains frequency for a given IANA timezone.
// Exported for testing with specific timezones.
func FrequencyForTimezone(timezone string) int {
	// UTC/GMT have no country association, default to 50Hz
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return 50
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return 50
	}

	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return 50
	}

	return frequencyForCountry(country)
}

// HumTolerance is how close in Hz an F0 estimate must be to a mains
// harmonic to count as hum
const HumTolerance = 2.0

// Harmonics returns the multiples of fundamental inside [lo, hi]
func Harmonics(fundamental int, lo, hi float64) []float64 {
	if fundamental <= 0 {
		return nil
	}
	var out []float64
	f := float64(fundamental)
	for k := math.Max(1, math.Ceil(lo/f)); k*f <= hi; k++ {
		out = append(out, k*f)
	}
	return out
}

// HumShare returns the fraction of voiced F0 values (> 0) that sit within
// tolerance of a harmonic of fundamental inside [lo, hi]. A pitch tracker
// locked onto hum shows up as a large share.
func HumShare(f0 []float64, fundamental int, lo, hi, tolerance float64) float64 {
	harmonics := Harmonics(fundamental, lo, hi)
	voiced, near := 0, 0
	for _, f := range f0 {
		if !(f > 0) {
			continue
		}
		voiced++
		for _, h := range harmonics {
			if math.Abs(f-h) <= tolerance {
				near++
				break
			}
		}
	}
	if voiced == 0 {
		return 0
	}
	return float64(near) / float64(voiced)
}

// frequencyForCountry returns the mains frequency for a country name.
// Returns 50Hz for unknown countries (more common globally).
func frequencyForCountry(country string) int {
	// Japan special case: split 50/60Hz by region
	// Default to 50Hz (Tokyo region is most populous)
	if country == "Japan" {
		return 50
	}

	if hz60Countries[country] {
		return 60
	}
	return 50
}

// hz60Countries lists countries using 60Hz mains power.
// All other countries use 50Hz.
// Source: https://en.wikipedia.org/wiki/Mains_electricity_by_country
var hz60Countries = map[string]bool{
	// North America
	"United States": true,
	"Canada":        true,
	"Mexico":        true,

	// Central America
	"Belize":      true,
	"Costa Rica":  true,
	"El Salvador": true,
	"Guatemala":   true,
	"Honduras":    true,
	"Nicaragua":   true,
	"Panama":      true,

	// Caribbean
	"Bahamas":             true,
	"Barbados":            true,
	"Cayman Islands":      true,
	"Cuba":                true,
	"Dominican Republic":  true,
	"Haiti":               true,
	"Jamaica":             true,
	"Puerto Rico":         true,
	"Trinidad and Tobago": true,
	"U.S. Virgin Islands": true,

	// South America (partial, most use 50Hz)
	"Brazil":    true, // Note: Brazil has both 50Hz and 60Hz regions; 60Hz predominant
	"Colombia":  true,
	"Ecuador":   true,
	"Guyana":    true,
	"Peru":      true,
	"Suriname":  true,
	"Venezuela": true,

	// Asia (partial)
	"South Korea":  true,
	"Taiwan":       true,
	"Philippines":  true,
	"Saudi Arabia": true,

	// Pacific
	"Guam":             true,
	"American Samoa":   true,
	"Marshall Islands": true,
	"Micronesia":       true,
	"Palau":            true,
}

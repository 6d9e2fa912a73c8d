package interfaces

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// MmolConversionFactor converts mmol/L to mg/dL (mg/dL = mmol/L * factor).
const MmolConversionFactor = 18.0182

// Unit is a glucose concentration unit.
type Unit int

const (
	UnitMgDL Unit = iota
	UnitMmolL
)

func (u Unit) String() string {
	switch u {
	case UnitMgDL:
		return "mg/dL"
	case UnitMmolL:
		return "mmol/L"
	default:
		return "unknown"
	}
}

// Floor is the lowest value a sensor reports in this unit; charts start here.
func (u Unit) Floor() float64 {
	if u == UnitMmolL {
		return 2.2
	}
	return 40
}

// BandMargin separates the normal band from the threshold bands on charts.
func (u Unit) BandMargin() float64 {
	if u == UnitMmolL {
		return 0.1
	}
	return 1
}

// ParseUnit accepts URL path tokens ("mgdl", "mmol", ...) as well as the
// display names returned by String.
func ParseUnit(token string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "mgdl", "mg_dl", "mg-dl", "mg/dl":
		return UnitMgDL, nil
	case "mmol", "mmoll", "mmol_l", "mmol-l", "mmol/l":
		return UnitMmolL, nil
	}
	return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidArgument, token)
}

// TrendCategory is the coarse direction of change of a reading.
type TrendCategory int

const (
	TrendUnknown TrendCategory = iota
	TrendRisingFast
	TrendRising
	TrendFlat
	TrendFalling
	TrendFallingFast
)

func (t TrendCategory) String() string {
	switch t {
	case TrendRisingFast:
		return "rising-fast"
	case TrendRising:
		return "rising"
	case TrendFlat:
		return "flat"
	case TrendFalling:
		return "falling"
	case TrendFallingFast:
		return "falling-fast"
	default:
		return "unknown"
	}
}

// NativeTrend is the provider's ten-valued trend indicator.
type NativeTrend int

const (
	TrendNone NativeTrend = iota
	TrendDoubleUp
	TrendSingleUp
	TrendFortyFiveUp
	TrendFlatNative
	TrendFortyFiveDown
	TrendSingleDown
	TrendDoubleDown
	TrendNotComputable
	TrendRateOutOfRange
)

var nativeTrendNames = [...]string{
	"None", "DoubleUp", "SingleUp", "FortyFiveUp", "Flat",
	"FortyFiveDown", "SingleDown", "DoubleDown", "NotComputable", "RateOutOfRange",
}

var nativeTrendArrows = [...]string{"", "↑↑", "↑", "↗", "→", "↘", "↓", "↓↓", "?", "-"}

// ParseNativeTrend maps a provider trend name onto NativeTrend. Unknown names
// map to TrendNone.
func ParseNativeTrend(name string) NativeTrend {
	for i, n := range nativeTrendNames {
		if strings.EqualFold(n, name) {
			return NativeTrend(i)
		}
	}
	return TrendNone
}

func (n NativeTrend) valid() bool {
	return n >= TrendNone && n <= TrendRateOutOfRange
}

func (n NativeTrend) String() string {
	if !n.valid() {
		return nativeTrendNames[TrendNone]
	}
	return nativeTrendNames[n]
}

func (n NativeTrend) Arrow() string {
	if !n.valid() {
		return ""
	}
	return nativeTrendArrows[n]
}

func (n NativeTrend) Category() TrendCategory {
	switch n {
	case TrendDoubleUp:
		return TrendRisingFast
	case TrendSingleUp, TrendFortyFiveUp:
		return TrendRising
	case TrendFlatNative:
		return TrendFlat
	case TrendFortyFiveDown, TrendSingleDown:
		return TrendFalling
	case TrendDoubleDown:
		return TrendFallingFast
	default:
		return TrendUnknown
	}
}

// GlucoseReading is a single sensor measurement. Both unit values derive from
// the same raw mg/dL value; the zero value is not a valid reading.
type GlucoseReading struct {
	timestamp time.Time
	mgdl      int
	mmol      float64
	trend     NativeTrend
}

// NewGlucoseReading builds a reading from the raw mg/dL measurement.
func NewGlucoseReading(timestamp time.Time, mgdl int, trend NativeTrend) GlucoseReading {
	return GlucoseReading{
		timestamp: timestamp,
		mgdl:      mgdl,
		mmol:      MgDLToMmol(mgdl),
		trend:     trend,
	}
}

// MgDLToMmol converts and rounds to one decimal place.
func MgDLToMmol(mgdl int) float64 {
	return math.Round(float64(mgdl)/MmolConversionFactor*10) / 10
}

func (r GlucoseReading) Timestamp() time.Time     { return r.timestamp }
func (r GlucoseReading) MgDL() int                { return r.mgdl }
func (r GlucoseReading) MmolL() float64           { return r.mmol }
func (r GlucoseReading) NativeTrend() NativeTrend { return r.trend }
func (r GlucoseReading) Trend() TrendCategory     { return r.trend.Category() }
func (r GlucoseReading) TrendArrow() string       { return r.trend.Arrow() }

// Value returns the concentration in the given unit.
func (r GlucoseReading) Value(u Unit) float64 {
	if u == UnitMmolL {
		return r.mmol
	}
	return float64(r.mgdl)
}

// Format renders the concentration without the unit suffix.
func (r GlucoseReading) Format(u Unit) string {
	if u == UnitMmolL {
		return fmt.Sprintf("%.1f", r.mmol)
	}
	return fmt.Sprintf("%d", r.mgdl)
}

// ReadingSeries is ordered by timestamp, oldest first.
type ReadingSeries []GlucoseReading

// NewReadingSeries copies readings into a chronologically ascending series.
func NewReadingSeries(readings []GlucoseReading) ReadingSeries {
	series := make(ReadingSeries, len(readings))
	copy(series, readings)
	slices.SortStableFunc(series, func(a, b GlucoseReading) int {
		return a.timestamp.Compare(b.timestamp)
	})
	return series
}

// Span returns the first and last timestamps. ok is false for an empty series.
func (s ReadingSeries) Span() (first, last time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s[0].timestamp, s[len(s)-1].timestamp, true
}

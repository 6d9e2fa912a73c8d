package dexcom

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ruteri/dexcom-browser-source/interfaces"
)

// wireReading is one element of ReadPublisherLatestGlucoseValues.
type wireReading struct {
	WT    string          `json:"WT"`
	ST    string          `json:"ST"`
	DT    string          `json:"DT"`
	Value int             `json:"Value"`
	Trend json.RawMessage `json:"Trend"`
}

var dateRe = regexp.MustCompile(`^Date\((-?\d+)(?:([+-])(\d{2})(\d{2}))?\)$`)

// parseDate parses "Date(1691455258000-0400)". The offset, when present,
// becomes the location of the returned time.
func parseDate(s string) (time.Time, error) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed date %q", s)
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	t := time.UnixMilli(ms).UTC()
	if m[2] == "" {
		return t, nil
	}

	hours, _ := strconv.Atoi(m[3])
	mins, _ := strconv.Atoi(m[4])
	offset := hours*3600 + mins*60
	if m[2] == "-" {
		offset = -offset
	}
	return t.In(time.FixedZone("", offset)), nil
}

// parseTrend accepts both the trend name and its numeric code.
func parseTrend(raw json.RawMessage) interfaces.NativeTrend {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return interfaces.ParseNativeTrend(name)
	}
	var code int
	if err := json.Unmarshal(raw, &code); err == nil && code >= int(interfaces.TrendNone) && code <= int(interfaces.TrendRateOutOfRange) {
		return interfaces.NativeTrend(code)
	}
	return interfaces.TrendNone
}

func (w wireReading) toReading() (interfaces.GlucoseReading, error) {
	ts, err := parseDate(w.WT)
	if err != nil {
		return interfaces.GlucoseReading{}, err
	}
	if w.Value <= 0 {
		return interfaces.GlucoseReading{}, fmt.Errorf("non-positive value %d", w.Value)
	}
	return interfaces.NewGlucoseReading(ts, w.Value, parseTrend(w.Trend)), nil
}

package dexcom

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ruteri/dexcom-browser-source/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccountID = "11111111-2222-3333-4444-555555555555"
	testSessionID = "99999999-8888-7777-6666-555555555555"
)

// fakeShare emulates the three Share endpoints the client uses.
type fakeShare struct {
	t        *testing.T
	readings []map[string]any
	logins   atomic.Int32
	// loginCode, if set, is returned as a provider error from the login endpoint.
	loginCode  string
	sessionID  string
	lastQuery  atomic.Value
	readStatus int
}

func (f *fakeShare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, http.MethodPost, r.Method)
	switch r.URL.Path {
	case "/" + endpointAuthenticate:
		var body map[string]string
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "user", body["accountName"])
		json.NewEncoder(w).Encode(testAccountID)
	case "/" + endpointLogin:
		f.logins.Add(1)
		var body map[string]string
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, testAccountID, body["accountId"])
		if f.loginCode != "" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(providerError{Code: f.loginCode, Message: "nope"})
			return
		}
		sid := f.sessionID
		if sid == "" {
			sid = testSessionID
		}
		json.NewEncoder(w).Encode(sid)
	case "/" + endpointReadings:
		f.lastQuery.Store(r.URL.Query())
		assert.Equal(f.t, testSessionID, r.URL.Query().Get("sessionId"))
		if f.readStatus != 0 {
			w.WriteHeader(f.readStatus)
			return
		}
		json.NewEncoder(w).Encode(f.readings)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeShare) *Client {
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(Credentials{Username: "user", Password: "secret"}, logger, WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func wire(ms int64, offset string, value int, trend any) map[string]any {
	return map[string]any{
		"WT":    "Date(" + jsonInt(ms) + offset + ")",
		"ST":    "Date(" + jsonInt(ms) + ")",
		"DT":    "Date(" + jsonInt(ms) + offset + ")",
		"Value": value,
		"Trend": trend,
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestClient_ReadingsSince_NormalizesOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	f := &fakeShare{readings: []map[string]any{
		wire(base+10*60_000, "-0400", 130, "SingleUp"),
		wire(base, "-0400", 110, "Flat"),
		wire(base+5*60_000, "-0400", 120, 3),
	}}
	c := newTestClient(t, f)

	series, err := c.ReadingsSince(context.Background(), 60)
	require.NoError(t, err)
	require.Len(t, series, 3)

	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Timestamp().Before(series[i].Timestamp()))
	}
	assert.Equal(t, 110, series[0].MgDL())
	assert.Equal(t, interfaces.TrendFlat, series[0].Trend())
	assert.Equal(t, "↗", series[1].TrendArrow())
	assert.Equal(t, interfaces.TrendRising, series[2].Trend())

	_, offset := series[0].Timestamp().Zone()
	assert.Equal(t, -4*3600, offset)

	q := f.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"60"}, q["minutes"])
	assert.Equal(t, []string{"13"}, q["maxCount"])
}

func TestClient_ReadingsSince_InvalidMinutes(t *testing.T) {
	f := &fakeShare{}
	c := newTestClient(t, f)

	for _, minutes := range []int{0, -5, MaxMinutes + 1} {
		_, err := c.ReadingsSince(context.Background(), minutes)
		assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
	}
	assert.Zero(t, f.logins.Load())
}

func TestClient_CurrentReading(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	f := &fakeShare{readings: []map[string]any{wire(base, "", 95, "FortyFiveDown")}}
	c := newTestClient(t, f)

	reading, err := c.CurrentReading(context.Background())
	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, 95, reading.MgDL())
	assert.Equal(t, interfaces.TrendFalling, reading.Trend())

	q := f.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"10"}, q["minutes"])
	assert.Equal(t, []string{"1"}, q["maxCount"])
}

func TestClient_CurrentReading_Absent(t *testing.T) {
	f := &fakeShare{readings: []map[string]any{}}
	c := newTestClient(t, f)

	reading, err := c.CurrentReading(context.Background())
	require.NoError(t, err)
	assert.Nil(t, reading)
}

func TestClient_Stateless(t *testing.T) {
	f := &fakeShare{readings: []map[string]any{}}
	c := newTestClient(t, f)

	_, err := c.CurrentReading(context.Background())
	require.NoError(t, err)
	_, err = c.CurrentReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestClient_FailureTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		fake   *fakeShare
		target error
	}{
		{"bad password", &fakeShare{loginCode: "AccountPasswordInvalid"}, interfaces.ErrAuthentication},
		{"sso lockout", &fakeShare{loginCode: "SSO_AuthenticateMaxAttemptsExceeed"}, interfaces.ErrAuthentication},
		{"null session", &fakeShare{sessionID: "00000000-0000-0000-0000-000000000000"}, interfaces.ErrAuthentication},
		{"provider invalid argument", &fakeShare{loginCode: "InvalidArgument"}, interfaces.ErrInvalidArgument},
		{"provider outage", &fakeShare{readStatus: http.StatusServiceUnavailable}, interfaces.ErrUpstreamUnavailable},
		{"unknown provider code", &fakeShare{loginCode: "SSO_InternalError"}, interfaces.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.fake)
			_, err := c.ReadingsSince(context.Background(), 30)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	closedURL := srv.URL
	srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(Credentials{Username: testAccountID, Password: "secret"}, logger, WithBaseURL(closedURL))
	require.NoError(t, err)

	_, err = c.CurrentReading(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrUpstreamUnavailable)
}

func TestClient_AccountIDSkipsAuthenticate(t *testing.T) {
	f := &fakeShare{t: t, readings: []map[string]any{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/"+endpointAuthenticate, func(w http.ResponseWriter, r *http.Request) {
		t.Error("authenticate must not be called for account ids")
	})
	mux.Handle("/", f)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(Credentials{Username: testAccountID, Password: "secret"}, logger, WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.CurrentReading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestNewClient_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(Credentials{Username: "user"}, logger)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, err = NewClient(Credentials{Username: "user", Password: "p", Region: "mars"}, logger)
	assert.Error(t, err)

	c, err := NewClient(Credentials{Username: "user", Password: "p", Region: "JP"}, logger)
	require.NoError(t, err)
	assert.Equal(t, baseURLJP, c.baseURL)
	assert.Equal(t, applicationIDJP, c.appID)
}

func TestParseDate(t *testing.T) {
	ts, err := parseDate("Date(1691455258000-0400)")
	require.NoError(t, err)
	assert.Equal(t, int64(1691455258000), ts.UnixMilli())
	_, offset := ts.Zone()
	assert.Equal(t, -4*3600, offset)

	ts, err = parseDate("Date(1691455258000+0530)")
	require.NoError(t, err)
	_, offset = ts.Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	ts, err = parseDate("Date(1691455258000)")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())

	_, err = parseDate("2024-05-01T12:00:00Z")
	assert.Error(t, err)
}

func TestMalformedReadingsAreSkipped(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	f := &fakeShare{readings: []map[string]any{
		wire(base, "", 100, "Flat"),
		{"WT": "yesterday", "Value": 100, "Trend": "Flat"},
		wire(base+60_000, "", 0, "Flat"),
	}}
	c := newTestClient(t, f)

	series, err := c.ReadingsSince(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestNewClient_NilLoggerFallsBackToDefault(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	f := &fakeShare{t: t, readings: []map[string]any{
		{"WT": "yesterday", "Value": 100, "Trend": "Flat"},
		wire(base, "", 100, "Flat"),
	}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := NewClient(Credentials{Username: "user", Password: "secret"}, nil, WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.NotNil(t, c.log)

	assert.NotPanics(t, func() {
		series, err := c.ReadingsSince(context.Background(), 30)
		require.NoError(t, err)
		assert.Len(t, series, 1)
	})
}

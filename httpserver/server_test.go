package httpserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/dexcom-browser-source/api"
	"github.com/ruteri/dexcom-browser-source/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeFunc func(r chi.Router)

func (f routeFunc) RegisterRoutes(r chi.Router) { f(r) }

func textRoute(body string) RouteRegistrar {
	return routeFunc(func(r chi.Router) {
		r.Get("/api/current", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	})
}

func newTestServer(t *testing.T, addr string, handler RouteRegistrar) *Server {
	t.Helper()
	cfg := &api.HTTPServerConfig{
		ListenAddr:               addr,
		GracefulShutdownDuration: 2 * time.Second,
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	srv, err := New(cfg, handler, metrics.New("test"))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Stop() })
	return srv
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

var testClient = &http.Client{
	Timeout:   5 * time.Second,
	Transport: &http.Transport{DisableKeepAlives: true},
}

func get(t *testing.T, srv *Server, path string) (int, string) {
	t.Helper()
	resp, err := testClient.Get(fmt.Sprintf("http://%s%s", srv.Addr(), path))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func drain(ch <-chan StateChange) []StateChange {
	var changes []StateChange
	for {
		select {
		case c := <-ch:
			changes = append(changes, c)
		default:
			return changes
		}
	}
}

func transitions(changes []StateChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.From.String()+"->"+c.To.String())
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, textRoute("x"), nil)
	assert.Error(t, err)

	_, err = New(&api.HTTPServerConfig{ListenAddr: "127.0.0.1:0"}, nil, nil)
	assert.Error(t, err)
}

func TestServer_InitialState(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	assert.Equal(t, StateStopped, srv.State())
	assert.Empty(t, srv.Addr())
}

func TestServer_StartServes(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("120"))

	state, err := srv.Start()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	require.NotEmpty(t, srv.Addr())

	code, body := get(t, srv, "/api/current")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "120", body)
}

func TestServer_StartIdempotent(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	_, err := srv.Start()
	require.NoError(t, err)
	addr := srv.Addr()

	for i := 0; i < 3; i++ {
		state, err := srv.Start()
		require.NoError(t, err)
		assert.Equal(t, StateRunning, state)
		assert.Equal(t, addr, srv.Addr())
	}

	assert.Equal(t, []string{"stopped->starting", "starting->running"}, transitions(drain(events)))
}

func TestServer_StopWhenStopped(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	assert.Equal(t, StateStopped, srv.Stop())
	assert.Equal(t, StateStopped, srv.Stop())
	assert.Empty(t, drain(events))
}

func TestServer_StopReleasesPort(t *testing.T) {
	addr := freeAddr(t)
	srv := newTestServer(t, addr, textRoute("x"))

	for i := 0; i < 3; i++ {
		_, err := srv.Start()
		require.NoError(t, err)
		assert.Equal(t, addr, srv.Addr())
		assert.Equal(t, StateStopped, srv.Stop())
		assert.Empty(t, srv.Addr())
	}

	// the port is free again once Stop returned
	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestServer_RestartRebindsSameAddress(t *testing.T) {
	addr := freeAddr(t)
	srv := newTestServer(t, addr, textRoute("x"))
	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	_, err := srv.Start()
	require.NoError(t, err)

	state, err := srv.Restart()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, addr, srv.Addr())

	code, _ := get(t, srv, "/api/current")
	assert.Equal(t, http.StatusOK, code)

	assert.Equal(t, []string{
		"stopped->starting", "starting->running",
		"running->stopping", "stopping->stopped",
		"stopped->starting", "starting->running",
	}, transitions(drain(events)))
}

func TestServer_RestartFromStopped(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))

	state, err := srv.Restart()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
}

func TestServer_BindError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	srv := newTestServer(t, occupied.Addr().String(), textRoute("x"))
	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	state, err := srv.Start()
	require.Error(t, err)
	assert.Equal(t, StateStopped, state)

	var bindErr *BindError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, occupied.Addr().String(), bindErr.Addr)
	assert.NotNil(t, errors.Unwrap(err))

	changes := drain(events)
	require.Len(t, changes, 2)
	assert.Equal(t, []string{"stopped->starting", "starting->stopped"}, transitions(changes))
	assert.Nil(t, changes[0].Err)
	assert.ErrorAs(t, changes[1].Err, &bindErr)

	// caller-driven retry once the port frees up
	require.NoError(t, occupied.Close())
	state, err = srv.Start()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
}

func TestServer_NotificationOrder(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	_, err := srv.Start()
	require.NoError(t, err)
	srv.Stop()

	changes := drain(events)
	assert.Equal(t, []string{
		"stopped->starting", "starting->running",
		"running->stopping", "stopping->stopped",
	}, transitions(changes))
	for i := 1; i < len(changes); i++ {
		assert.False(t, changes[i].At.Before(changes[i-1].At))
	}
}

func TestServer_SlowSubscriberDoesNotBlock(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	slow, unsubscribeSlow := srv.Subscribe(1)
	defer unsubscribeSlow()
	fast, unsubscribeFast := srv.Subscribe(0)
	defer unsubscribeFast()

	_, err := srv.Start()
	require.NoError(t, err)
	srv.Stop()

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 4)
}

func TestServer_Unsubscribe(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	events, unsubscribe := srv.Subscribe(0)
	unsubscribe()
	unsubscribe()

	_, err := srv.Start()
	require.NoError(t, err)

	_, ok := <-events
	assert.False(t, ok)
}

func TestServer_GracefulInflight(t *testing.T) {
	entered := make(chan struct{})
	handler := routeFunc(func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("done"))
		})
	})
	srv := newTestServer(t, "127.0.0.1:0", handler)
	_, err := srv.Start()
	require.NoError(t, err)
	url := fmt.Sprintf("http://%s/slow", srv.Addr())

	type result struct {
		code int
		body string
		err  error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := testClient.Get(url)
		if err != nil {
			results <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		results <- result{code: resp.StatusCode, body: string(body), err: err}
	}()

	<-entered
	assert.Equal(t, StateStopped, srv.Stop())

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "done", res.body)
}

func TestServer_ForcedShutdownAfterGrace(t *testing.T) {
	entered := make(chan struct{})
	cancelled := make(chan struct{})
	handler := routeFunc(func(r chi.Router) {
		r.Get("/hang", func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-r.Context().Done()
			close(cancelled)
		})
	})
	srv := newTestServer(t, "127.0.0.1:0", handler)
	srv.cfg.GracefulShutdownDuration = 100 * time.Millisecond
	events, unsubscribe := srv.Subscribe(0)
	defer unsubscribe()

	_, err := srv.Start()
	require.NoError(t, err)
	url := fmt.Sprintf("http://%s/hang", srv.Addr())
	go func() {
		resp, err := testClient.Get(url)
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-entered
	start := time.Now()
	assert.Equal(t, StateStopped, srv.Stop())
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request context was not cancelled")
	}

	changes := drain(events)
	require.Len(t, changes, 4)
	assert.Equal(t, StateStopped, changes[3].To)
	assert.Error(t, changes[3].Err)
}

func TestServer_PanicRecovered(t *testing.T) {
	handler := routeFunc(func(r chi.Router) {
		r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
		r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
	})
	srv := newTestServer(t, "127.0.0.1:0", handler)
	_, err := srv.Start()
	require.NoError(t, err)

	code, _ := get(t, srv, "/panic")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, body := get(t, srv, "/ok")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
	assert.Equal(t, StateRunning, srv.State())
}

func TestServer_HealthEndpoints(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", textRoute("x"))
	_, err := srv.Start()
	require.NoError(t, err)

	code, _ := get(t, srv, "/livez")
	assert.Equal(t, http.StatusOK, code)

	code, body := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ready")
}

func TestServer_Reconfigure(t *testing.T) {
	addr := freeAddr(t)
	srv := newTestServer(t, addr, textRoute("old"))

	// stopped: swapped for the next start
	state, err := srv.Reconfigure(textRoute("first"))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)

	_, err = srv.Start()
	require.NoError(t, err)
	_, body := get(t, srv, "/api/current")
	assert.Equal(t, "first", body)

	state, err = srv.Reconfigure(textRoute("second"))
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, addr, srv.Addr())
	_, body = get(t, srv, "/api/current")
	assert.Equal(t, "second", body)

	_, err = srv.Reconfigure(nil)
	assert.Error(t, err)
}

func TestServer_ConcurrentLifecycleCalls(t *testing.T) {
	addr := freeAddr(t)
	srv := newTestServer(t, addr, textRoute("x"))
	events, unsubscribe := srv.Subscribe(1024)
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, _ = srv.Start()
			case 1:
				srv.Stop()
			default:
				_, _ = srv.Restart()
			}
		}(i)
	}
	wg.Wait()

	state := srv.State()
	assert.True(t, state == StateRunning || state == StateStopped)

	// every delivered change continues from the previous one
	changes := drain(events)
	prev := StateStopped
	for _, c := range changes {
		assert.Equal(t, prev, c.From)
		prev = c.To
	}
	assert.Equal(t, state, prev)
}

func TestServer_StartWhileStoppingIsNoop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := routeFunc(func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			close(entered)
			<-release
		})
	})
	srv := newTestServer(t, "127.0.0.1:0", handler)
	_, err := srv.Start()
	require.NoError(t, err)

	url := fmt.Sprintf("http://%s/slow", srv.Addr())
	go func() {
		resp, err := testClient.Get(url)
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered

	stopped := make(chan ServerState, 1)
	go func() { stopped <- srv.Stop() }()
	require.Eventually(t, func() bool { return srv.State() == StateStopping }, 5*time.Second, 5*time.Millisecond)

	start := time.Now()
	state, err := srv.Start()
	require.NoError(t, err)
	assert.Equal(t, StateStopping, state)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(release)
	assert.Equal(t, StateStopped, <-stopped)
	assert.Equal(t, StateStopped, srv.State())
}

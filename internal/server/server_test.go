package server_test

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"shortlink/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startBare starts a health-only server and returns its base URL. The
// server is shut down on cleanup unless the test already did so.
func startBare(t *testing.T, cfg server.Config, routes map[string]http.HandlerFunc) (*server.Server, string) {
	t.Helper()

	srv := server.New(cfg)
	for pattern, h := range routes {
		srv.HandleFunc(pattern, h)
	}

	go func() {
		_ = srv.Start()
	}()

	base := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(t, base+"/health", 2*time.Second)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, base
}

func slowHandler(d time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(d)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("done"))
	}
}

// getAsync issues a GET and reports whether it finished with 200.
func getAsync(url string) <-chan bool {
	done := make(chan bool, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			done <- false
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode == http.StatusOK
	}()
	return done
}

func TestServer_StartsAndRespondsToHealthCheck(t *testing.T) {
	_, base := startBare(t, server.Config{Port: 18081, ShutdownTimeout: 5 * time.Second}, nil)

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServer_GracefulShutdown_WaitsForInFlightRequests(t *testing.T) {
	srv, base := startBare(t, server.Config{Port: 18082, ShutdownTimeout: 5 * time.Second},
		map[string]http.HandlerFunc{"GET /slow": slowHandler(500 * time.Millisecond)})

	requestCompleted := getAsync(base + "/slow")

	// Give the request time to start
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))

	select {
	case completed := <-requestCompleted:
		assert.True(t, completed, "in-flight request should complete")
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}
}

func TestServer_GracefulShutdown_TimesOutIfRequestsTooSlow(t *testing.T) {
	cfg := server.Config{Port: 18083, ShutdownTimeout: 100 * time.Millisecond}
	srv, base := startBare(t, cfg,
		map[string]http.HandlerFunc{"GET /very-slow": slowHandler(5 * time.Second)})

	getAsync(base + "/very-slow")
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)
}

func TestServer_Run(t *testing.T) {
	testCases := []struct {
		name     string
		port     int
		inFlight bool
	}{
		{name: "shuts down on context cancel", port: 18084},
		{name: "completes in-flight requests", port: 18085, inFlight: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := server.New(server.Config{Port: tc.port, ShutdownTimeout: 5 * time.Second})
			srv.HandleFunc("GET /slow", slowHandler(300*time.Millisecond))

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- srv.Run(ctx)
			}()

			base := fmt.Sprintf("http://localhost:%d", tc.port)
			waitForServer(t, base+"/health", 2*time.Second)

			var requestDone <-chan bool
			if tc.inFlight {
				requestDone = getAsync(base + "/slow")
				time.Sleep(50 * time.Millisecond)
			}

			cancel()

			if tc.inFlight {
				select {
				case completed := <-requestDone:
					assert.True(t, completed, "in-flight request should complete")
				case <-time.After(2 * time.Second):
					t.Fatal("request did not complete")
				}
			}

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(3 * time.Second):
				t.Fatal("server did not shutdown")
			}
		})
	}
}

func TestServer_MiddlewareHeaders(t *testing.T) {
	_, base := startBare(t, server.Config{Port: 18086, ShutdownTimeout: 5 * time.Second}, nil)

	req, err := http.NewRequest(http.MethodGet, base+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-abc")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	header := resp.Header.Get("X-Processing-Time-Micros")
	require.NotEmpty(t, header, "X-Processing-Time-Micros header should be present")
	_, err = strconv.ParseInt(header, 10, 64)
	assert.NoError(t, err, "header should be a valid integer")

	assert.Equal(t, "trace-abc", resp.Header.Get("X-Request-ID"))
}

func TestServer_RecoversFromPanics(t *testing.T) {
	_, base := startBare(t, server.Config{Port: 18087, ShutdownTimeout: 5 * time.Second},
		map[string]http.HandlerFunc{"GET /panic": func(w http.ResponseWriter, r *http.Request) {
			panic("handler bug")
		}})

	resp, err := http.Get(base + "/panic")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	health, err := http.Get(base + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode, "server keeps serving after a panic")
}

func TestServer_WithoutHandlerServesOnlyHealth(t *testing.T) {
	_, base := startBare(t, server.Config{Port: 18088, ShutdownTimeout: 5 * time.Second}, nil)

	resp, err := http.Get(base + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

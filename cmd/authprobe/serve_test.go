package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/nao1215/authprobe/internal/config"
	"github.com/nao1215/authprobe/internal/protocol/protocoltest"
)

// TestNewServeCmd tests the serve command creation.
func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "serve" {
			t.Errorf("expected use 'serve', got %q", cmd.Use)
		}
	})

	t.Run("has listen flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("listen")
		if flag == nil {
			t.Fatal("expected listen flag")
		}
		if flag.DefValue != config.DefaultListenAddress {
			t.Errorf("expected default %q, got %q", config.DefaultListenAddress, flag.DefValue)
		}
	})

	t.Run("shares the probe flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"services", "proxy", "tor", "no-notice", "handshake-timeout"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("has no report flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("json") != nil {
			t.Error("expected no json flag")
		}
	})
}

// TestRunServeCmd tests serving until the context is canceled.
func TestRunServeCmd(t *testing.T) {
	t.Parallel()

	t.Run("invalid listen address", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"serve", "--config", writeConfigFile(t, ""), "--listen", "no-port"})

		err := root.Execute()
		if !errors.Is(err, config.ErrInvalidListenAddress) {
			t.Errorf("expected ErrInvalidListenAddress, got %v", err)
		}
	})

	t.Run("serves health checks and shuts down", func(t *testing.T) {
		t.Parallel()

		addr := "127.0.0.1:" + strconv.Itoa(int(protocoltest.ClosedPort(t)))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		root := NewRootCmd()
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"serve", "--config", writeConfigFile(t, ""), "--listen", addr, "--log-json"})

		done := make(chan error, 1)
		go func() {
			done <- root.ExecuteContext(ctx)
		}()

		var lastErr error
		for range 100 {
			resp, err := http.Get("http://" + addr + "/healthz") //nolint:noctx // test request
			if err == nil {
				resp.Body.Close()
				lastErr = nil
				if resp.StatusCode != http.StatusOK {
					t.Errorf("expected 200, got %d", resp.StatusCode)
				}
				break
			}
			lastErr = err
			time.Sleep(20 * time.Millisecond)
		}
		if lastErr != nil {
			t.Fatalf("server never answered: %v", lastErr)
		}

		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(15 * time.Second):
			t.Fatal("serve did not return after cancel")
		}
	})
}

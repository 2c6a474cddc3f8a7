// Package protocoltest provides in-process fake servers for testing
// handshake drivers and the code built on them.
package protocoltest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// FakeRedis is a minimal RESP server. It answers the commands go-redis
// sends during connection setup, PING and QUIT.
type FakeRedis struct {
	requireAuth bool

	// Port is the port the server listens on.
	Port uint16

	// Active counts connections that are still open.
	Active atomic.Int32

	// Quits counts QUIT commands received.
	Quits atomic.Int32

	// Commands counts commands received.
	Commands atomic.Int32
}

// StartFakeRedis starts a fake Redis server on a random local port.
// With requireAuth, every command is answered with NOAUTH.
func StartFakeRedis(t *testing.T, requireAuth bool) *FakeRedis {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	f := &FakeRedis{
		requireAuth: requireAuth,
		Port:        uint16(ln.Addr().(*net.TCPAddr).Port), //nolint:gosec // ephemeral port fits in uint16
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			f.Active.Add(1)
			go f.serve(conn)
		}
	}()

	return f
}

func (f *FakeRedis) serve(conn net.Conn) {
	defer f.Active.Add(-1)
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		f.Commands.Add(1)

		var reply string
		switch strings.ToUpper(args[0]) {
		case "HELLO":
			if f.requireAuth {
				reply = "-NOAUTH HELLO must be called with the client already authenticated\r\n"
			} else {
				reply = "-ERR unknown command 'HELLO'\r\n"
			}
		case "CLIENT":
			if f.requireAuth {
				reply = "-NOAUTH Authentication required.\r\n"
			} else {
				reply = "+OK\r\n"
			}
		case "PING":
			if f.requireAuth {
				reply = "-NOAUTH Authentication required.\r\n"
			} else {
				reply = "+PONG\r\n"
			}
		case "QUIT":
			f.Quits.Add(1)
			_, _ = io.WriteString(conn, "+OK\r\n")
			return
		default:
			reply = fmt.Sprintf("-ERR unknown command '%s'\r\n", args[0])
		}

		if _, err := io.WriteString(conn, reply); err != nil {
			return
		}
	}
}

// readCommand reads one RESP array of bulk strings.
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "*") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty inline command")
		}
		return fields, nil
	}

	n, err := strconv.Atoi(line[1:])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("invalid array header %q", line)
	}

	args := make([]string, 0, n)
	for range n {
		header, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimRight(header, "\r\n")[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

// StartGarbageServer starts a server that answers every connection with
// bytes no database protocol accepts, then closes it.
func StartGarbageServer(t *testing.T) uint16 {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.WriteString(conn, "SSH-2.0-OpenSSH_9.6\r\n")
				_, _ = io.Copy(io.Discard, io.LimitReader(conn, 64))
			}()
		}
	}()

	return uint16(ln.Addr().(*net.TCPAddr).Port) //nolint:gosec // ephemeral port fits in uint16
}

// SilentServer accepts connections and never writes to them. It stands in
// for a stalled service or for a proxy that must not be contacted.
type SilentServer struct {
	// Port is the port the server listens on.
	Port uint16

	// Accepted counts connections accepted so far.
	Accepted atomic.Int32

	mu    sync.Mutex
	conns []net.Conn
}

// StartSilentServer starts a SilentServer on a random local port. Open
// connections are closed at cleanup.
func StartSilentServer(t *testing.T) *SilentServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &SilentServer{
		Port: uint16(ln.Addr().(*net.TCPAddr).Port), //nolint:gosec // ephemeral port fits in uint16
	}
	t.Cleanup(func() {
		_ = ln.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, conn := range s.conns {
			_ = conn.Close()
		}
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, conn)
			s.mu.Unlock()
			s.Accepted.Add(1)
			go func() { _, _ = io.Copy(io.Discard, conn) }()
		}
	}()

	return s
}

// Address returns the server's "host:port".
func (s *SilentServer) Address() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(s.Port)))
}

// ClosedPort returns a local port with no listener.
func ClosedPort(t *testing.T) uint16 {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port) //nolint:gosec // ephemeral port fits in uint16
	_ = ln.Close()
	return port
}

// EnvAddress returns host and port from a "host:port" environment
// variable, skipping the test when it is unset.
func EnvAddress(t *testing.T, key string) (string, uint16) {
	t.Helper()

	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s is not set", key)
	}
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		t.Fatalf("%s: %v", key, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("%s: invalid port: %v", key, err)
	}
	return host, uint16(port)
}

package endpoint

import (
	"context"
	"io"
	"net"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/rorilink/internal/auth"
	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/danmuck/rorilink/internal/testutil/testlog"
	"github.com/danmuck/rorilink/internal/testutil/tlstest"
	"github.com/danmuck/rorilink/internal/transport"
)

type runningServer struct {
	addr   string
	queue  *Queue
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, cfg ServerConfig) *runningServer {
	t.Helper()
	ln, err := transport.Listen("127.0.0.1:0", cfg.Transport)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	queue := NewQueue()
	srv := NewServer(cfg, queue)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()
	rs := &runningServer{addr: ln.Addr().String(), queue: queue, cancel: cancel, done: done}
	t.Cleanup(func() { rs.stop(t) })
	return rs
}

func (rs *runningServer) stop(t *testing.T) {
	t.Helper()
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	rs.cancel = nil
	select {
	case err := <-rs.done:
		if err != nil {
			t.Fatalf("serve exit err: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not exit")
	}
}

func testServerConfig() ServerConfig {
	cfg := DefaultServerConfig()
	cfg.Transport.ReadTimeout = 2 * time.Second
	return cfg
}

func testClientConfig() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	return cfg
}

func send(t *testing.T, addr string, cfg transport.Config, msg protocol.Message) {
	t.Helper()
	client, err := transport.NewClient(addr, cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func sendRaw(t *testing.T, addr string, payload string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := io.WriteString(conn, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.Close()
}

func waitForQueue(t *testing.T, q *Queue, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if q.Len() >= n {
			return q.Snapshot()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d queued items, have %v", n, q.Snapshot())
	return nil
}

func TestServerQueuesText(t *testing.T) {
	testlog.Start(t)
	rs := startServer(t, testServerConfig())

	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "hi", "c", protocol.DatatypeText, ""))

	got := waitForQueue(t, rs.queue, 1)
	if len(got) != 1 || got[0] != "hi" {
		t.Fatalf("unexpected queue: %v", got)
	}
}

func TestServerDoesNotQueueRegister(t *testing.T) {
	testlog.Start(t)
	rs := startServer(t, testServerConfig())

	send(t, rs.addr, testClientConfig(), protocol.NewMessage("owner", "127.0.0.1:5000|text", "bot", protocol.DatatypeRegister, ""))
	// Connections are handled in accept order, so once the marker lands the
	// register message has been processed.
	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "marker", "c", protocol.DatatypeText, ""))

	got := waitForQueue(t, rs.queue, 1)
	if len(got) != 1 || got[0] != "marker" {
		t.Fatalf("register must not be queued: %v", got)
	}
}

func TestServerSurvivesMalformedInput(t *testing.T) {
	testlog.Start(t)
	rs := startServer(t, testServerConfig())

	sendRaw(t, rs.addr, "not a message")
	sendRaw(t, rs.addr, `{"author":"u","content":"hi","client":"c","datatype":"text"}`)
	sendRaw(t, rs.addr, string([]byte{0xff, 0xfe}))
	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "after", "c", protocol.DatatypeText, ""))

	got := waitForQueue(t, rs.queue, 1)
	if len(got) != 1 || got[0] != "after" {
		t.Fatalf("unexpected queue: %v", got)
	}
}

func TestServerNULTruncatedPayload(t *testing.T) {
	testlog.Start(t)
	rs := startServer(t, testServerConfig())

	payload := protocol.Encode(protocol.NewMessage("u", "hi", "c", protocol.DatatypeText, "")) + "\x00\x00trailing junk"
	sendRaw(t, rs.addr, payload)

	got := waitForQueue(t, rs.queue, 1)
	if len(got) != 1 || got[0] != "hi" {
		t.Fatalf("unexpected queue: %v", got)
	}
}

func TestServerPreservesOrderAcrossConnections(t *testing.T) {
	testlog.Start(t)
	rs := startServer(t, testServerConfig())
	for _, content := range []string{"one", "two", "three"} {
		send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", content, "c", protocol.DatatypeText, ""))
	}
	got := waitForQueue(t, rs.queue, 3)
	if strings.Join(got, ",") != "one,two,three" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestServerAuthorizationGatesDelivery(t *testing.T) {
	testlog.Start(t)
	cfg := testServerConfig()
	cfg.Validator = auth.ForClients([]auth.AuthorizedClient{{Name: "bot", SecretHash: auth.HashSecret("s3cret")}})
	rs := startServer(t, cfg)

	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "denied", "bot", protocol.DatatypeText, "wrong"))
	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "stranger", "other", protocol.DatatypeText, "s3cret"))
	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "allowed", "Bot", protocol.DatatypeText, "s3cret"))

	got := waitForQueue(t, rs.queue, 1)
	if len(got) != 1 || got[0] != "allowed" {
		t.Fatalf("unexpected queue: %v", got)
	}
}

func TestServerOnRegisterHook(t *testing.T) {
	testlog.Start(t)
	cfg := testServerConfig()
	regs := make(chan protocol.Registration, 1)
	cfg.OnRegister = func(msg protocol.Message, reg protocol.Registration) {
		if msg.Client != "bot" {
			t.Errorf("unexpected register client: %q", msg.Client)
		}
		regs <- reg
	}
	rs := startServer(t, cfg)

	send(t, rs.addr, testClientConfig(), protocol.NewMessage("owner", "10.0.0.5:5000|text", "bot", protocol.DatatypeRegister, ""))

	select {
	case reg := <-regs:
		if reg.Address != "10.0.0.5:5000" || reg.CompatibleTypes != "text" {
			t.Fatalf("unexpected registration: %+v", reg)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("registration hook not called")
	}
	if rs.queue.Len() != 0 {
		t.Fatalf("register must not be queued")
	}
}

func TestServerReadTimeoutReleasesSilentPeer(t *testing.T) {
	testlog.Start(t)
	cfg := testServerConfig()
	cfg.Transport.ReadTimeout = 100 * time.Millisecond
	rs := startServer(t, cfg)

	silent, err := net.Dial("tcp", rs.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer silent.Close()

	send(t, rs.addr, testClientConfig(), protocol.NewMessage("u", "next", "c", protocol.DatatypeText, ""))
	got := waitForQueue(t, rs.queue, 1)
	if got[0] != "next" {
		t.Fatalf("unexpected queue: %v", got)
	}
}

func TestServerTLS(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t, "rori-ca")
	pair := ca.IssueLoopbackServer(t, "endpoint")

	cfg := testServerConfig()
	cfg.Transport.TLS = transport.TLSConfig{Enabled: true, CertFile: pair.CertFile, KeyFile: pair.KeyFile}
	rs := startServer(t, cfg)

	clientCfg := testClientConfig()
	clientCfg.TLS = transport.TLSConfig{Enabled: true, CAFile: ca.CAFile()}
	send(t, rs.addr, clientCfg, protocol.NewMessage("u", strings.Repeat("é", 400), "c", protocol.DatatypeText, ""))

	got := waitForQueue(t, rs.queue, 1)
	if got[0] != strings.Repeat("é", 400) {
		t.Fatalf("unexpected tls payload len=%d", len(got[0]))
	}
}

func TestServerStopsOnCancelWhileReading(t *testing.T) {
	testlog.Start(t)
	cfg := testServerConfig()
	cfg.Transport.ReadTimeout = 0
	rs := startServer(t, cfg)

	silent, err := net.Dial("tcp", rs.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer silent.Close()
	// Give the loop time to accept and block on the silent peer.
	time.Sleep(50 * time.Millisecond)
	rs.stop(t)
}

func TestServerListenRequiresAddress(t *testing.T) {
	testlog.Start(t)
	for _, addr := range []string{"", transport.UnsetAddress} {
		cfg := DefaultServerConfig()
		cfg.ListenAddr = addr
		if _, err := NewServer(cfg, nil).Listen(); err != ErrListenAddressRequired {
			t.Fatalf("address %q: expected ErrListenAddressRequired, got %v", addr, err)
		}
	}
}

func TestServeReleasesWatcherWhenListenerClosed(t *testing.T) {
	testlog.Start(t)
	baseline := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		_ = ln.Close()
		if err := NewServer(testServerConfig(), nil).Serve(context.Background(), ln); err != nil {
			t.Fatalf("serve on closed listener: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline+2 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines grew from %d to %d", baseline, runtime.NumGoroutine())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

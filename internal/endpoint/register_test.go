package endpoint

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/rorilink/internal/protocol"
	"github.com/danmuck/rorilink/internal/testutil/testlog"
	"github.com/danmuck/rorilink/internal/transport"
)

type recordingSender struct {
	sent []protocol.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg protocol.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func testIdentity() Identity {
	return Identity{
		Owner:           "alice",
		Name:            "irc-bot",
		CompatibleTypes: "text",
		Secret:          "s3cret",
		ListenAddr:      "127.0.0.1:5000",
	}
}

func TestRegisterBuildsRegistrationMessage(t *testing.T) {
	testlog.Start(t)
	id := testIdentity()
	sender := &recordingSender{}

	if !Register(context.Background(), &id, sender) {
		t.Fatalf("expected registration success")
	}
	if !id.IsRegistered {
		t.Fatalf("identity should be marked registered")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("unexpected send count: %d", len(sender.sent))
	}
	got := sender.sent[0]
	want := protocol.Message{
		Author:   "alice",
		Content:  "127.0.0.1:5000|text",
		Client:   "irc-bot",
		Datatype: protocol.DatatypeRegister,
		Secret:   "s3cret",
	}
	if got != want {
		t.Fatalf("unexpected registration message: %+v", got)
	}
}

func TestRegisterFailureLeavesUnregistered(t *testing.T) {
	testlog.Start(t)
	id := testIdentity()
	id.IsRegistered = true
	sender := &recordingSender{err: errors.New("connection refused")}

	if Register(context.Background(), &id, sender) {
		t.Fatalf("expected registration failure")
	}
	if id.IsRegistered {
		t.Fatalf("identity should not be registered after failed send")
	}
}

func TestRegisterWithHubServer(t *testing.T) {
	testlog.Start(t)
	cfg := testServerConfig()
	regs := make(chan protocol.Message, 1)
	cfg.OnRegister = func(msg protocol.Message, _ protocol.Registration) {
		regs <- msg
	}
	hub := startServer(t, cfg)

	client, err := transport.NewClient(hub.addr, testClientConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	id := testIdentity()
	if !Register(context.Background(), &id, client) {
		t.Fatalf("expected registration success")
	}
	select {
	case msg := <-regs:
		if msg != RegistrationMessage(testIdentity()) {
			t.Fatalf("unexpected registration at hub: %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("hub did not receive registration")
	}
}

func TestRegisterUnreachableHub(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	client, err := transport.NewClient(addr, testClientConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	id := testIdentity()
	if Register(context.Background(), &id, client) || id.IsRegistered {
		t.Fatalf("expected failed registration against closed port")
	}
}

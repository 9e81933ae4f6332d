package doora

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestChannelSinkReceivesEvents(t *testing.T) {
	sink := NewChannelSink(4)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess, Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditEventLoginSuccess || !ev.Success {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// A sink that never drains: buffer size 1, second emit must drop.
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 8; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailure})
	}
	if d.Dropped() == 0 {
		t.Error("expected dropped events with a blocked sink")
	}
	close(blocked)
	d.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func TestJSONWriterSinkOutput(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventRegisterSuccess,
		AccountID: "acc-1",
		Success:   true,
	})

	var ev AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if ev.EventType != auditEventRegisterSuccess || ev.AccountID != "acc-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDisabledAuditProducesNilDispatcher(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("disabled audit must not start a dispatcher")
	}
	// Nil dispatcher methods are safe.
	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

func TestAuditErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{ErrAccountExists, auditErrDuplicate},
		{ErrRefreshReuse, auditErrRefreshReuse},
		{ErrTokenInvalid, auditErrInvalidToken},
		{ErrVerificationDispatch, auditErrDispatch},
		{ErrStoreUnavailable, auditErrUnavailable},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Errorf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestLoginEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(16)
	cfg := testConfig()
	cfg.Audit.Enabled = true

	mailer := &fakeMailer{}
	_, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMailer(mailer).
		WithUploader(&fakeUploader{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	registerTestAccount(t, engine, mailer)
	if _, err := engine.Login(context.Background(), "amina@example.com", "wrong"); err == nil {
		t.Fatal("expected login failure")
	}

	deadline := time.After(2 * time.Second)
	seen := map[string]bool{}
	for !seen[auditEventRegisterSuccess] || !seen[auditEventLoginFailure] {
		select {
		case ev := <-sink.Events():
			seen[ev.EventType] = true
		case <-deadline:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
}

package websocket

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return string(data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub, nil)

	hub.Register(c)
	eventually(t, func() bool { return hub.ClientCount() == 1 }, "client not registered")

	hub.Subscribe(c, "s1")
	if hub.SubscriberCount("s1") != 1 {
		t.Errorf("SubscriberCount = %d, want 1", hub.SubscriberCount("s1"))
	}

	hub.Unregister(c)
	eventually(t, func() bool { return hub.ClientCount() == 0 }, "client not unregistered")
	if hub.SubscriberCount("s1") != 0 {
		t.Error("subscriptions should be dropped on unregister")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
	if c.ctx.Err() == nil {
		t.Error("client context should be cancelled")
	}
	if c.enqueue([]byte("late")) {
		t.Error("enqueue after close should fail")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := startHub(t)
	a, b := NewClient(hub, nil), NewClient(hub, nil)
	hub.Register(a)
	hub.Register(b)
	eventually(t, func() bool { return hub.ClientCount() == 2 }, "clients not registered")

	hub.Subscribe(a, "trip")
	hub.Broadcast("trip", []byte("only-a"))
	if got := recv(t, a); got != "only-a" {
		t.Errorf("a got %q", got)
	}

	hub.BroadcastAll([]byte("everyone"))
	if got := recv(t, a); got != "everyone" {
		t.Errorf("a got %q", got)
	}
	if got := recv(t, b); got != "everyone" {
		t.Errorf("b got %q", got)
	}
	select {
	case data := <-b.send:
		t.Errorf("b received unexpected %q", data)
	default:
	}

	hub.Unsubscribe(a, "trip")
	if hub.SubscriberCount("trip") != 0 {
		t.Error("unsubscribe left a subscriber")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := NewClient(hub, nil)
	hub.Register(c)
	eventually(t, func() bool { return hub.ClientCount() == 1 }, "client not registered")

	cancel()
	<-stopped
	if c.ctx.Err() == nil {
		t.Error("client should be closed when the hub stops")
	}

	// 停止后的调用不会阻塞
	hub.Unregister(c)
	hub.BroadcastAll([]byte("x"))
	late := NewClient(hub, nil)
	hub.Register(late)
	if late.ctx.Err() == nil {
		t.Error("late client should be closed immediately")
	}
}

package helpers

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	kv   map[string]interface{}
	sent []interface{}
}

func newStubContext() *stubContext {
	return &stubContext{kv: map[string]interface{}{}}
}

func (s *stubContext) Update() tele.Update { return tele.Update{ID: 1} }

func (s *stubContext) Sender() *tele.User { return &tele.User{ID: 7} }

func (s *stubContext) Chat() *tele.Chat { return &tele.Chat{ID: 7} }

func (s *stubContext) Get(key string) interface{} { return s.kv[key] }

func (s *stubContext) Set(key string, val interface{}) { s.kv[key] = val }

func (s *stubContext) Send(what interface{}, opts ...interface{}) error {
	s.sent = append(s.sent, what)
	return nil
}

type stubDispatcher struct {
	accept   bool
	enqueued int
}

func (d *stubDispatcher) Enqueue(c tele.Context, what interface{}, opts ...interface{}) bool {
	d.enqueued++
	return d.accept
}

func TestSendTextQueuesThroughDispatcher(t *testing.T) {
	d := &stubDispatcher{accept: true}
	SetDispatcher(d)
	defer SetDispatcher(nil)

	c := newStubContext()
	if err := SendText(c, "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if d.enqueued != 1 {
		t.Fatalf("enqueued = %d", d.enqueued)
	}
	if len(c.sent) != 0 {
		t.Fatalf("accepted enqueue still sent synchronously: %+v", c.sent)
	}
}

func TestSendTextFallsBackWhenQueueFull(t *testing.T) {
	d := &stubDispatcher{accept: false}
	SetDispatcher(d)
	defer SetDispatcher(nil)

	c := newStubContext()
	if err := SendText(c, "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != "hi" {
		t.Fatalf("fallback did not send synchronously: %+v", c.sent)
	}
}

func TestSendTextWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)

	c := newStubContext()
	if err := SendText(c, "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent = %+v", c.sent)
	}
}

package session

import (
	"sync"
	"testing"

	"github.com/brunobiangulo/acctplan"
)

func TestGetOrCreate_CreatesIdleSessionOnce(t *testing.T) {
	m := New()
	s1 := m.GetOrCreate("s1", "u1")
	if s1.AgentState != acctplan.StateIdle {
		t.Fatalf("expected new session to start idle, got %v", s1.AgentState)
	}
	s2 := m.GetOrCreate("s1", "u1")
	if s1 != s2 {
		t.Fatalf("expected GetOrCreate to return the same session instance")
	}
}

func TestGet_UnknownSessionMisses(t *testing.T) {
	m := New()
	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected miss for unknown session")
	}
}

func TestAppendMessage_AccumulatesInOrder(t *testing.T) {
	m := New()
	m.GetOrCreate("s1", "u1")
	m.AppendMessage("s1", "user", "hello")
	m.AppendMessage("s1", "assistant", "hi there")

	s, _ := m.Get("s1")
	if len(s.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.Messages))
	}
	if s.Messages[0].Content != "hello" || s.Messages[1].Content != "hi there" {
		t.Fatalf("unexpected message order: %+v", s.Messages)
	}
}

func TestWithLock_SerializesConcurrentTurnsOnSameSession(t *testing.T) {
	m := New()
	m.GetOrCreate("s1", "u1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.WithLock("s1", func(s *acctplan.Session) {
				if s == nil {
					return
				}
				s.Messages = append(s.Messages, acctplan.Message{Role: "user", Content: "x"})
			})
		}()
	}
	wg.Wait()

	s, _ := m.Get("s1")
	if len(s.Messages) != 50 {
		t.Fatalf("expected 50 messages with no lost updates, got %d", len(s.Messages))
	}
}

func TestDelete_RemovesSession(t *testing.T) {
	m := New()
	m.GetOrCreate("s1", "u1")
	m.Delete("s1")
	if _, ok := m.Get("s1"); ok {
		t.Fatalf("expected session to be gone after Delete")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty registry after Delete")
	}
}

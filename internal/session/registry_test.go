package session

import (
	"reflect"
	"testing"
	"time"

	"stockwatch/internal/model"
)

func TestRegistry_OpenGetClose(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 5)
	r := NewRegistry(f, nil, nil)
	defer r.CloseAll()

	s := r.Open("AAPL", "1d")
	if s.ID() == "" {
		t.Fatal("session id must be set")
	}
	got, ok := r.Get(s.ID())
	if !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v", s.ID(), got, ok)
	}

	if !r.Close(s.ID()) {
		t.Error("Close should report true for a live session")
	}
	if _, ok := r.Get(s.ID()); ok {
		t.Error("session still resolvable after close")
	}
	if r.Close(s.ID()) {
		t.Error("double close should report false")
	}
}

func TestRegistry_SymbolsAreDistinctAndSorted(t *testing.T) {
	f := newFakeProvider()
	r := NewRegistry(f, nil, nil)
	defer r.CloseAll()

	r.Open("MSFT", "1d")
	r.Open("AAPL", "1d")
	r.Open("AAPL", "1wk")

	if got, want := r.Symbols(), []string{"AAPL", "MSFT"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Symbols() = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRegistry_RenderListenerTagged(t *testing.T) {
	f := newFakeProvider()
	f.histories["1d"] = barSeries("AAPL", "1d", 24*time.Hour, 5)

	renders := make(chan string, 16)
	r := NewRegistry(f, nil, func(id string, p model.RenderPayload) {
		renders <- id
	})
	defer r.CloseAll()

	s := r.Open("AAPL", "1d")
	select {
	case id := <-renders:
		if id != s.ID() {
			t.Errorf("render tagged %q, want %q", id, s.ID())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no render after open")
	}
}

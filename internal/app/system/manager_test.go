package system

import (
	"context"
	"errors"
	"testing"
)

type recorder struct {
	name     string
	events   *[]string
	startErr error
}

func (r recorder) Name() string { return r.name }

func (r recorder) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.events = append(*r.events, "start "+r.name)
	return nil
}

func (r recorder) Stop(context.Context) error {
	*r.events = append(*r.events, "stop "+r.name)
	return nil
}

func TestManagerOrder(t *testing.T) {
	var events []string
	m := NewManager(nil)
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recorder{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recorder{name: "a", events: &events}); err == nil {
		t.Fatal("expected duplicate registration error")
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var events []string
	m := NewManager(nil)
	_ = m.Register(recorder{name: "a", events: &events})
	_ = m.Register(recorder{name: "b", events: &events, startErr: errors.New("boom")})
	_ = m.Register(recorder{name: "c", events: &events})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	want := []string{"start a", "stop a"}
	if len(events) != 2 || events[0] != want[0] || events[1] != want[1] {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestNoopService(t *testing.T) {
	m := NewManager(nil)
	if err := m.Register(NoopService{ServiceName: "disabled"}); err != nil {
		t.Fatal(err)
	}
	if got := m.Services(); len(got) != 1 || got[0] != "disabled" {
		t.Fatalf("services = %v", got)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

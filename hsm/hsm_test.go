package hsm_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stateforward/go-stepper/clock"
	"github.com/stateforward/go-stepper/hsm"
)

type Trace struct {
	mutex sync.Mutex
	sync  []string
}

func (t *Trace) add(name string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.sync = append(t.sync, name)
}

func (t *Trace) reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.sync = []string{}
}

func (t *Trace) matches(expected []string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return slices.Equal(t.sync, expected)
}

func (t *Trace) String() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return "[" + strings.Join(t.sync, " ") + "]"
}

type storage struct {
	context.Context
	foo int
}

func TestHSM(t *testing.T) {
	trace := &Trace{}
	mockAction := func(name string) func(ctx hsm.Context[*storage], event hsm.Event) {
		return func(ctx hsm.Context[*storage], event hsm.Event) {
			trace.add(name)
		}
	}
	model := hsm.Define(
		"TestHSM",
		hsm.State("s",
			hsm.Entry(mockAction("s.entry")),
			hsm.Exit(mockAction("s.exit")),
			hsm.State("s1",
				hsm.State("s11",
					hsm.Entry(mockAction("s11.entry")),
					hsm.Exit(mockAction("s11.exit")),
				),
				hsm.Initial("s11", hsm.Effect(mockAction("s1.initial.effect"))),
				hsm.Entry(mockAction("s1.entry")),
				hsm.Exit(mockAction("s1.exit")),
				hsm.Transition(hsm.Trigger("I"), hsm.Effect(mockAction("s1.I.transition.effect"))),
			),
			hsm.State("s2",
				hsm.Entry(mockAction("s2.entry")),
				hsm.Exit(mockAction("s2.exit")),
				hsm.Transition(hsm.Trigger("D"), hsm.Target("/s/s1"),
					hsm.Guard(func(ctx hsm.Context[*storage], event hsm.Event) bool {
						return ctx.Storage.foo == 1
					}),
					hsm.Effect(mockAction("s2.D.transition.effect")),
				),
			),
			hsm.Initial("s1"),
			hsm.Transition(hsm.Trigger("E"), hsm.Target("/s/s2"), hsm.Effect(mockAction("s.E.transition.effect"))),
			hsm.Transition(hsm.Trigger("F"), hsm.Target("/t"), hsm.Effect(func(ctx hsm.Context[*storage], event hsm.Event) {
				trace.add("s.F.transition.effect")
				ctx.Dispatch(hsm.NewEvent("G"))
			})),
		),
		hsm.State("t",
			hsm.Entry(mockAction("t.entry")),
			hsm.Transition(hsm.Trigger("G"), hsm.Target("/u")),
		),
		hsm.State("u",
			hsm.Entry(mockAction("u.entry")),
			hsm.Transition(hsm.Trigger("*"), hsm.Target("/s")),
		),
		hsm.Initial("s"),
	)
	if model.Id() != "/TestHSM" {
		t.Fatalf("expected model id /TestHSM, got %s", model.Id())
	}
	sm := hsm.New(&storage{Context: context.Background()}, &model)
	if sm.State() != "/s/s1/s11" {
		t.Fatalf("expected initial state /s/s1/s11, got %s", sm.State())
	}
	if !trace.matches([]string{"s.entry", "s1.entry", "s1.initial.effect", "s11.entry"}) {
		t.Fatalf("unexpected initial trace %s", trace)
	}

	t.Run("InternalTransition", func(t *testing.T) {
		trace.reset()
		sm.Dispatch(hsm.NewEvent("I"))
		if sm.State() != "/s/s1/s11" {
			t.Fatalf("expected state /s/s1/s11, got %s", sm.State())
		}
		if !trace.matches([]string{"s1.I.transition.effect"}) {
			t.Fatalf("unexpected trace %s", trace)
		}
	})

	t.Run("ExternalTransitionFromAncestor", func(t *testing.T) {
		trace.reset()
		sm.Dispatch(hsm.NewEvent("E"))
		if sm.State() != "/s/s2" {
			t.Fatalf("expected state /s/s2, got %s", sm.State())
		}
		if !trace.matches([]string{"s11.exit", "s1.exit", "s.E.transition.effect", "s2.entry"}) {
			t.Fatalf("unexpected trace %s", trace)
		}
	})

	t.Run("Guard", func(t *testing.T) {
		trace.reset()
		sm.Dispatch(hsm.NewEvent("D"))
		if sm.State() != "/s/s2" {
			t.Fatalf("guard should block D, state %s", sm.State())
		}
		sm.Storage.foo = 1
		sm.Dispatch(hsm.NewEvent("D"))
		if sm.State() != "/s/s1/s11" {
			t.Fatalf("expected state /s/s1/s11, got %s", sm.State())
		}
		if !trace.matches([]string{"s2.exit", "s2.D.transition.effect", "s1.entry", "s1.initial.effect", "s11.entry"}) {
			t.Fatalf("unexpected trace %s", trace)
		}
	})

	t.Run("DispatchFromBehavior", func(t *testing.T) {
		trace.reset()
		sm.Dispatch(hsm.NewEvent("F"))
		if sm.State() != "/u" {
			t.Fatalf("expected the queued G to reach /u, got %s", sm.State())
		}
		if !trace.matches([]string{"s11.exit", "s1.exit", "s.exit", "s.F.transition.effect", "t.entry", "u.entry"}) {
			t.Fatalf("unexpected trace %s", trace)
		}
	})

	t.Run("PatternTrigger", func(t *testing.T) {
		sm.Dispatch(hsm.NewEvent("anything"))
		if sm.State() != "/s/s1/s11" {
			t.Fatalf("expected state /s/s1/s11, got %s", sm.State())
		}
	})

	t.Run("Terminate", func(t *testing.T) {
		trace.reset()
		sm.Terminate()
		if sm.State() != "" {
			t.Fatalf("expected no state after terminate, got %s", sm.State())
		}
		if !trace.matches([]string{"s11.exit", "s1.exit", "s.exit"}) {
			t.Fatalf("unexpected trace %s", trace)
		}
		sm.Dispatch(hsm.NewEvent("E"))
		if sm.State() != "" {
			t.Fatalf("dispatch after terminate moved to %s", sm.State())
		}
	})
}

func TestAfter(t *testing.T) {
	trace := &Trace{}
	model := hsm.Define(
		"TestAfter",
		hsm.State("waiting",
			hsm.Transition(hsm.After(func(ctx hsm.Context[*storage]) time.Duration {
				return time.Duration(ctx.Storage.foo) * time.Second
			}), hsm.Target("/done")),
			hsm.Transition(hsm.Trigger("reset"), hsm.Target("/waiting")),
		),
		hsm.State("done",
			hsm.Entry(func(ctx hsm.Context[*storage], event hsm.Event) {
				trace.add("done.entry")
			}),
		),
		hsm.Initial("waiting"),
	)
	sm := hsm.New(&storage{Context: context.Background(), foo: 1}, &model, hsm.Config{
		Clock: clock.Make(clock.Config{Speed: 20}),
	})
	defer sm.Terminate()

	// re-entering waiting rearms the timer, the first one never fires
	time.Sleep(25 * time.Millisecond)
	sm.Dispatch(hsm.NewEvent("reset"))
	time.Sleep(35 * time.Millisecond)
	if sm.State() != "/waiting" {
		t.Fatalf("expected the rearmed timer to be pending, got %s", sm.State())
	}
	deadline := time.Now().Add(time.Second)
	for sm.State() != "/done" {
		if time.Now().After(deadline) {
			t.Fatalf("timer never fired, state %s", sm.State())
		}
		time.Sleep(time.Millisecond)
	}
	if !trace.matches([]string{"done.entry"}) {
		t.Fatalf("expected a single entry into done, got %s", trace)
	}
}

func TestAfterCancelledOnExit(t *testing.T) {
	model := hsm.Define(
		"TestAfterCancelledOnExit",
		hsm.State("a",
			hsm.Transition(hsm.After(func(ctx hsm.Context[*storage]) time.Duration {
				return 100 * time.Millisecond
			}), hsm.Target("/c")),
			hsm.Transition(hsm.Trigger("leave"), hsm.Target("/b")),
		),
		hsm.State("b"),
		hsm.State("c"),
		hsm.Initial("a"),
	)
	sm := hsm.New(&storage{Context: context.Background()}, &model, hsm.Config{
		Clock: clock.Make(clock.Config{Speed: 10}),
	})
	defer sm.Terminate()
	sm.Dispatch(hsm.NewEvent("leave"))
	time.Sleep(30 * time.Millisecond)
	if sm.State() != "/b" {
		t.Fatalf("expected /b, got %s", sm.State())
	}
}

func TestLCA(t *testing.T) {
	cases := []struct{ a, b, lca string }{
		{"/s/s1", "/s/s2", "/s"},
		{"/s/s1", "/s/s1/s11", "/s/s1"},
		{"/s/s1", "/s/s1", "/s"},
		{"/s/s1/s11", "/t", "/"},
		{"/s", "", "/s"},
	}
	for _, c := range cases {
		if lca := hsm.LCA(c.a, c.b); lca != c.lca {
			t.Errorf("LCA(%q, %q) = %q, expected %q", c.a, c.b, lca, c.lca)
		}
	}
	if !hsm.IsAncestor("/", "/s") || !hsm.IsAncestor("/s", "/s/s1/s11") {
		t.Error("expected ancestors")
	}
	if hsm.IsAncestor("/s/s1", "/s/s10") || hsm.IsAncestor("/s", "/s") {
		t.Error("unexpected ancestors")
	}
}

func TestDefinePanics(t *testing.T) {
	cases := map[string]func(){
		"MissingTarget": func() {
			hsm.Define("m", hsm.State("a", hsm.Transition(hsm.Trigger("x"), hsm.Target("/nowhere"))))
		},
		"CompletionTransition": func() {
			hsm.Define("m", hsm.State("a", hsm.Transition(hsm.Target("/a"))))
		},
		"InitialOutsideOwner": func() {
			hsm.Define("m", hsm.State("a"), hsm.State("b", hsm.Initial("/a")))
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected a panic")
				}
			}()
			fn()
		})
	}
}

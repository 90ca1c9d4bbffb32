package notify

import "testing"

func TestRegistry_OrderAndUnsubscribe(t *testing.T) {
	var r Registry[int]
	var got []string

	r.Add(func(v int) { got = append(got, "first") })
	unsub := r.Add(func(v int) { got = append(got, "second") })
	r.Add(func(v int) { got = append(got, "third") })

	r.Notify(1)
	if len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Fatalf("Unexpected notification order: %v", got)
	}

	unsub()
	unsub()
	got = nil
	r.Notify(2)
	if len(got) != 2 || got[0] != "first" || got[1] != "third" {
		t.Errorf("Expected [first third] after unsubscribe, got %v", got)
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 listeners, got %d", r.Len())
	}
}

func TestRegistry_UnsubscribeDuringNotify(t *testing.T) {
	var r Registry[string]
	var calls []string
	var unsubSecond func()

	r.Add(func(string) {
		calls = append(calls, "first")
		unsubSecond()
	})
	unsubSecond = r.Add(func(string) { calls = append(calls, "second") })

	var late func()
	r.Add(func(string) {
		calls = append(calls, "third")
		if late == nil {
			late = r.Add(func(string) { calls = append(calls, "late") })
		}
	})

	r.Notify("go")
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "third" {
		t.Errorf("Expected [first third], got %v", calls)
	}

	calls = nil
	r.Notify("again")
	if len(calls) != 3 || calls[2] != "late" {
		t.Errorf("Expected listener added during notify to run next time, got %v", calls)
	}
}

func TestRegistry_NilListenerAndClear(t *testing.T) {
	var r Registry[int]
	unsub := r.Add(nil)
	unsub()
	if r.Len() != 0 {
		t.Errorf("nil listener should not be registered")
	}

	r.Add(func(int) { t.Error("cleared listener called") })
	r.Clear()
	r.Notify(0)
}

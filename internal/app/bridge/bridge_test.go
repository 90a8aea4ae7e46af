package bridge

import (
	"sync"
	"testing"
)

func TestPublishWithoutSubscribersDrops(t *testing.T) {
	b := New()
	if got := b.Publish(Login, LoginPayload{IsLoggedIn: true}); got != 0 {
		t.Fatalf("Publish() = %d, want 0", got)
	}

	// no replay for late subscribers
	var seen int
	if _, err := b.Subscribe(Login, func(Event) { seen++ }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if seen != 0 {
		t.Errorf("late subscriber saw %d events, want 0", seen)
	}
}

func TestSubscribeUnknownChannel(t *testing.T) {
	b := New()
	if _, err := b.Subscribe(Channel("bogus"), func(Event) {}); err != ErrUnknownChannel {
		t.Fatalf("Subscribe(bogus) err = %v, want ErrUnknownChannel", err)
	}
	if got := b.Publish(Channel("bogus"), nil); got != 0 {
		t.Errorf("Publish(bogus) = %d, want 0", got)
	}
}

func TestPerChannelOrder(t *testing.T) {
	b := New()
	var got []uint64
	var statuses []any
	b.Subscribe(CallStatusChange, func(ev Event) {
		got = append(got, ev.Seq)
		statuses = append(statuses, ev.Payload)
	})

	want := []string{"ringing", "connected", "disconnected"}
	for _, s := range want {
		b.Publish(CallStatusChange, s)
	}

	if len(got) != len(want) {
		t.Fatalf("received %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, statuses[i], want[i])
		}
		if got[i] != uint64(i+1) {
			t.Errorf("seq %d = %d, want %d", i, got[i], i+1)
		}
	}
}

func TestConcurrentPublishersKeepSequence(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var seqs []uint64
	b.Subscribe(ValueChange, func(ev Event) {
		mu.Lock()
		seqs = append(seqs, ev.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(ValueChange, ValuePayload{Value: "x"})
			}
		}()
	}
	wg.Wait()

	if len(seqs) != 400 {
		t.Fatalf("received %d events, want 400", len(seqs))
	}
	for i, s := range seqs {
		if s != uint64(i+1) {
			t.Fatalf("seq[%d] = %d, want %d", i, s, i+1)
		}
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	b := New()
	var calls int
	sub, err := b.Subscribe(Login, func(Event) { calls++ })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	other, _ := b.Subscribe(Login, func(Event) {})

	sub.Remove()
	sub.Remove()

	if n := b.SubscriberCount(Login); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}
	b.Publish(Login, LoginPayload{})
	if calls != 0 {
		t.Errorf("removed handler called %d times", calls)
	}

	other.Remove()
	if n := b.SubscriberCount(Login); n != 0 {
		t.Errorf("SubscriberCount = %d, want 0", n)
	}
}

func TestHandlerMayRemoveItselfDuringDispatch(t *testing.T) {
	b := New()
	var first, second int
	var sub *Subscription
	sub, _ = b.Subscribe(IncomingCall, func(Event) {
		first++
		sub.Remove()
	})
	b.Subscribe(IncomingCall, func(Event) { second++ })

	b.Publish(IncomingCall, IncomingCallPayload{CallID: "c1"})
	b.Publish(IncomingCall, IncomingCallPayload{CallID: "c2"})

	if first != 1 {
		t.Errorf("self-removing handler called %d times, want 1", first)
	}
	if second != 2 {
		t.Errorf("second handler called %d times, want 2", second)
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	b := New()
	var logins, statuses int
	b.Subscribe(Login, func(Event) { logins++ })
	b.Subscribe(CallStatusChange, func(Event) { statuses++ })

	b.Publish(Login, LoginPayload{IsLoggedIn: true})

	if logins != 1 || statuses != 0 {
		t.Errorf("logins=%d statuses=%d, want 1 and 0", logins, statuses)
	}
}

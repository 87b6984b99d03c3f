package state

import (
	"sync"
	"testing"
)

func TestStore_Get_ReturnsInitialValue(t *testing.T) {
	s := NewStore(42)
	if got := s.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
}

func TestStore_Update_NotifiesListenersInOrder(t *testing.T) {
	s := NewStore(0)

	var calls []string
	s.Subscribe(func(v int) {
		calls = append(calls, "first")
		if v != 5 {
			t.Errorf("first listener value = %d, want 5", v)
		}
	})
	s.Subscribe(func(v int) {
		calls = append(calls, "second")
	})

	got := s.Update(func(v int) int { return v + 5 })
	if got != 5 {
		t.Errorf("Update() = %d, want 5", got)
	}

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("listener calls = %v, want [first second]", calls)
	}
}

func TestStore_Unsubscribe_StopsNotifications(t *testing.T) {
	s := NewStore("a")

	count := 0
	unsubscribe := s.Subscribe(func(string) { count++ })

	s.Set("b")
	unsubscribe()
	unsubscribe() // 2回目の呼び出しでもpanicしないこと
	s.Set("c")

	if count != 1 {
		t.Errorf("listener called %d times, want 1", count)
	}
	if s.ListenerCount() != 0 {
		t.Errorf("ListenerCount() = %d, want 0", s.ListenerCount())
	}
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	s := NewStore(1)

	var seen int
	s.Subscribe(func(int) {
		// 通知はロック解放後に行われるため、デッドロックしない
		seen = s.Get()
	})

	s.Set(7)
	if seen != 7 {
		t.Errorf("seen = %d, want 7", seen)
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()

	if got := s.Get(); got != 100 {
		t.Errorf("Get() = %d, want 100", got)
	}
}

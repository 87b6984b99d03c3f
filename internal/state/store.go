// Package state はUIストア相当の状態コンテナを提供する。
// グローバルなシングルトンを使わず、デバイスごとに生成して明示的に受け渡す。
package state

import "sync"

// Listener は状態変更の通知を受け取る関数。
type Listener[T any] func(T)

// Store は値の取得・更新・購読を提供するスレッドセーフな状態コンテナ。
// 通知はロックを解放した後、更新を行ったgoroutine上で登録順に同期的に行う。
type Store[T any] struct {
	mu        sync.RWMutex
	value     T
	listeners map[int]Listener[T]
	order     []int
	nextID    int
}

// NewStore は初期値を持つStoreを生成する。
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{
		value:     initial,
		listeners: make(map[int]Listener[T]),
	}
}

// Get は現在の値を返す。
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set は値を置き換えて購読者に通知する。
func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update は現在の値から新しい値を計算して置き換え、購読者に通知する。
// fnはロック保持中に呼ばれるため、Storeのメソッドを呼び出してはならない。
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	s.value = fn(s.value)
	v := s.value
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		l(v)
	}
	return v
}

// Subscribe は状態変更の購読を登録し、購読解除用の関数を返す。
// 購読解除関数は複数回呼んでも安全。
func (s *Store[T]) Subscribe(l Listener[T]) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// ListenerCount は登録中の購読者数を返す。テスト用。
func (s *Store[T]) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// snapshotListeners はロック保持中に購読者の一覧を登録順にコピーする。
func (s *Store[T]) snapshotListeners() []Listener[T] {
	ls := make([]Listener[T], 0, len(s.order))
	for _, id := range s.order {
		ls = append(ls, s.listeners[id])
	}
	return ls
}

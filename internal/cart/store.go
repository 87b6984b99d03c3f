// Package cart はカートの明細と合計金額を管理する。
package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/mealbox/internal/metrics"
	"github.com/hitoshi/mealbox/internal/model"
	"github.com/hitoshi/mealbox/internal/state"
)

const persistTimeout = 3 * time.Second

// SnapshotStore はユーザーごとのカートのスナップショットを永続化する。
// スナップショットがない場合、Loadはnil, nilを返す。
type SnapshotStore interface {
	Save(ctx context.Context, userID string, cart model.Cart) error
	Load(ctx context.Context, userID string) (*model.Cart, error)
}

// Store はカートを保持する。すべての操作は同期的で、エラーにならない。
// 合計金額は操作のたびに現在の明細から再計算される。
type Store struct {
	cart    *state.Store[model.Cart]
	persist SnapshotStore
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	mu    sync.Mutex
	owner string
}

// NewStore は空のカートを生成する。persistがnilの場合は永続化しない。
func NewStore(persist SnapshotStore, collector metrics.MetricsCollector, logger *slog.Logger) *Store {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cart:    state.NewStore(model.Cart{Items: []model.CartItem{}}),
		persist: persist,
		metrics: collector,
		logger:  logger,
	}
}

// Snapshot は現在のカートのコピーを返す。
func (s *Store) Snapshot() model.Cart {
	return cloneCart(s.cart.Get())
}

// Subscribe はカートの変更を購読する。
func (s *Store) Subscribe(fn func(model.Cart)) (unsubscribe func()) {
	return s.cart.Subscribe(func(c model.Cart) { fn(cloneCart(c)) })
}

// Has は指定IDの明細があるかを返す。
func (s *Store) Has(id string) bool {
	for _, item := range s.cart.Get().Items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// Add は明細を追加する。同じIDの明細がある場合は数量を加算する。
func (s *Store) Add(item model.CartItem) model.Cart {
	return s.mutate("add", func(items []model.CartItem) []model.CartItem {
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity += item.Quantity
				return items
			}
		}
		return append(items, item)
	})
}

// Remove は指定IDの明細を削除する。
func (s *Store) Remove(id string) model.Cart {
	return s.mutate("remove", func(items []model.CartItem) []model.CartItem {
		out := items[:0]
		for _, it := range items {
			if it.ID != id {
				out = append(out, it)
			}
		}
		return out
	})
}

// UpdateQuantity は数量をmax(0, quantity)に設定する。0になった明細は削除される。
func (s *Store) UpdateQuantity(id string, quantity int) model.Cart {
	if quantity < 0 {
		quantity = 0
	}
	return s.mutate("update_quantity", func(items []model.CartItem) []model.CartItem {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

// Clear はカートを空にする。
func (s *Store) Clear() model.Cart {
	return s.mutate("clear", func([]model.CartItem) []model.CartItem {
		return []model.CartItem{}
	})
}

// Attach はカートをユーザーに紐付け、以降の変更を永続化する。
// ローカルのカートが空の場合は保存済みのスナップショットを復元し、
// 空でない場合はローカルのカートで上書きする。
func (s *Store) Attach(ctx context.Context, userID string) {
	s.mu.Lock()
	if s.owner == userID {
		s.mu.Unlock()
		return
	}
	s.owner = userID
	s.mu.Unlock()

	if s.persist == nil || userID == "" {
		return
	}

	if len(s.cart.Get().Items) > 0 {
		s.save(ctx, userID, s.Snapshot())
		return
	}

	saved, err := s.persist.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to restore cart snapshot",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if saved == nil {
		return
	}

	restored := s.cart.Update(func(model.Cart) model.Cart {
		items := normalize(cloneItems(saved.Items))
		return model.Cart{Items: items, Total: Total(items)}
	})
	s.logger.Debug("cart restored", slog.String("user_id", userID), slog.Int("items", len(restored.Items)))
}

// Detach はユーザーとの紐付けを解除する。カートの内容はそのまま残る。
func (s *Store) Detach() {
	s.mu.Lock()
	s.owner = ""
	s.mu.Unlock()
}

// mutate は明細のコピーに変更を適用し、数量0以下の明細を除いて合計を再計算する。
func (s *Store) mutate(op string, fn func([]model.CartItem) []model.CartItem) model.Cart {
	next := s.cart.Update(func(c model.Cart) model.Cart {
		items := normalize(fn(cloneItems(c.Items)))
		return model.Cart{Items: items, Total: Total(items)}
	})
	s.metrics.RecordCartMutation(op)

	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()
	if owner != "" && s.persist != nil {
		s.save(context.Background(), owner, next)
	}
	return cloneCart(next)
}

// save はスナップショットを保存する。失敗はログに残すだけでカート操作には影響しない。
func (s *Store) save(ctx context.Context, userID string, c model.Cart) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := s.persist.Save(ctx, userID, c); err != nil {
		s.logger.Warn("failed to save cart snapshot",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Total は明細の価格×数量の合計を返す。
func Total(items []model.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

func normalize(items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, 0, len(items))
	for _, it := range items {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}

func cloneItems(items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, len(items))
	copy(out, items)
	return out
}

func cloneCart(c model.Cart) model.Cart {
	return model.Cart{Items: cloneItems(c.Items), Total: c.Total}
}

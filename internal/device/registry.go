package device

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mealbox/internal/metrics"
)

// RegistryConfig はデバイスレジストリの設定を保持する。
type RegistryConfig struct {
	IdleTimeout     time.Duration // 最終アクセスからこの時間を過ぎたデバイスを破棄する
	CleanupInterval time.Duration // 破棄判定の間隔
}

// DefaultRegistryConfig はデフォルトのレジストリ設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Registry はデバイスIDごとのDeviceを管理する。
// アプリケーションのルートで1つ生成し、Stopで全デバイスを破棄する。
type Registry struct {
	deps    Deps
	config  RegistryConfig
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	devices map[string]*Device

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRegistry は新しいRegistryを生成する。
// バックグラウンドでアイドルデバイスの破棄を開始する。
func NewRegistry(deps Deps, config RegistryConfig) *Registry {
	r := newRegistry(deps, config)
	go r.cleanupLoop()
	return r
}

func newRegistry(deps Deps, config RegistryConfig) *Registry {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRegistryConfig().CleanupInterval
	}
	return &Registry{
		deps:    deps,
		config:  config,
		metrics: collector,
		logger:  logger,
		now:     time.Now,
		devices: make(map[string]*Device),
		stopCh:  make(chan struct{}),
	}
}

// NewID は新しいデバイスIDを採番する。
func (r *Registry) NewID() string {
	return uuid.New().String()
}

// ValidID はクライアントが提示したデバイスIDが採番形式に合っているかを返す。
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get は既存のデバイスを返し、最終アクセス時刻を更新する。
func (r *Registry) Get(id string) (*Device, bool) {
	r.mu.Lock()
	d, ok := r.devices[id]
	r.mu.Unlock()

	if ok {
		d.touch(r.now())
	}
	return d, ok
}

// GetOrCreate はデバイスを返す。存在しない場合は生成して初期化する。
func (r *Registry) GetOrCreate(id string) *Device {
	if d, ok := r.Get(id); ok {
		return d
	}

	r.mu.Lock()
	// ダブルチェック
	if d, ok := r.devices[id]; ok {
		r.mu.Unlock()
		d.touch(r.now())
		return d
	}
	d := New(id, r.deps)
	d.touch(r.now())
	r.devices[id] = d
	count := len(r.devices)
	r.mu.Unlock()

	r.metrics.SetActiveDevices(count)
	r.logger.Debug("device registered", slog.String("device_id", id))

	d.Start()
	return d
}

// Remove はデバイスを破棄する。
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if ok {
		delete(r.devices, id)
	}
	count := len(r.devices)
	r.mu.Unlock()

	if ok {
		d.Close()
		r.metrics.SetActiveDevices(count)
	}
}

// Count は管理中のデバイス数を返す。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Stop はバックグラウンド処理を停止し、全デバイスを破棄する。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		devices := r.devices
		r.devices = make(map[string]*Device)
		r.mu.Unlock()

		for _, d := range devices {
			d.Close()
		}
		r.metrics.SetActiveDevices(0)
	})
}

// cleanupLoop はバックグラウンドでアイドルデバイスを定期的に破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTimeoutを超えたデバイスを破棄する。
func (r *Registry) evictIdle() int {
	if r.config.IdleTimeout <= 0 {
		return 0
	}
	now := r.now()

	var evicted []*Device
	r.mu.Lock()
	for id, d := range r.devices {
		if d.idleSince(now) > r.config.IdleTimeout {
			delete(r.devices, id)
			evicted = append(evicted, d)
		}
	}
	count := len(r.devices)
	r.mu.Unlock()

	for _, d := range evicted {
		d.Close()
	}
	if len(evicted) > 0 {
		r.metrics.SetActiveDevices(count)
		r.logger.Info("idle devices evicted",
			slog.Int("evicted", len(evicted)),
			slog.Int("active", count),
		)
	}
	return len(evicted)
}

package state

import "sync"

// Generations はフェッチ種別ごとの単調増加するリクエスト世代を管理する。
// 新しいフェッチを開始するたびにNextで世代を進め、結果の反映前にIsCurrentで
// 後続のフェッチに追い越されていないかを確認する。
type Generations struct {
	mu      sync.Mutex
	current map[string]uint64
}

// NewGenerations はGenerationsを生成する。
func NewGenerations() *Generations {
	return &Generations{current: make(map[string]uint64)}
}

// Next は指定種別の世代を1つ進め、新しい世代を返す。
func (g *Generations) Next(category string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current[category]++
	return g.current[category]
}

// IsCurrent は指定世代がその種別の最新世代かを返す。
func (g *Generations) IsCurrent(category string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[category] == gen
}

// Current は指定種別の最新世代を返す。
func (g *Generations) Current(category string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[category]
}

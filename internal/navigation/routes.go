// Package navigation はルートグループと、セッション状態から遷移先を決めるリダイレクト規則を提供する。
package navigation

import "github.com/hitoshi/mealbox/internal/model"

// Group はルートグループ。
type Group string

const (
	GroupOnboarding   Group = "onboarding"
	GroupProfileSetup Group = "profile-setup"
	GroupMain         Group = "main"
)

// Route はクライアントが表示すべき画面。
type Route struct {
	Group          Group  `json:"group"`
	Path           string `json:"path"`
	BackNavigation bool   `json:"back_navigation"`
}

// 定義済みルート
var (
	RouteOnboarding   = Route{Group: GroupOnboarding, Path: "/(auth)/onboarding", BackNavigation: true}
	RouteSignIn       = Route{Group: GroupOnboarding, Path: "/(auth)/sign-in", BackNavigation: true}
	RouteProfileSetup = Route{Group: GroupProfileSetup, Path: "/(profile-setup)/profile", BackNavigation: false}
	RouteMain         = Route{Group: GroupMain, Path: "/(tabs)/home", BackNavigation: true}
)

// Tabs はメイン画面のタブ一覧。
var Tabs = []Route{
	RouteMain,
	{Group: GroupMain, Path: "/(tabs)/recipes", BackNavigation: true},
	{Group: GroupMain, Path: "/(tabs)/favorites", BackNavigation: true},
	{Group: GroupMain, Path: "/(tabs)/cart", BackNavigation: true},
	{Group: GroupMain, Path: "/(tabs)/account", BackNavigation: true},
}

// Input はリダイレクト規則の入力となるセッション状態。
type Input struct {
	Loading       bool
	HasSession    bool
	ProfileStatus model.ProfileStatus
}

// Resolve はセッション状態から表示すべきルートを決める。
//
//   - 読み込み中 → オンボーディング
//   - セッションなし → オンボーディング
//   - セッションあり・プロフィールなし → プロフィール設定（戻る操作不可）
//   - セッションあり・プロフィールあり → メイン
//
// プロフィール有無が未確定の間はオンボーディングに留める。
func Resolve(in Input) Route {
	if in.Loading || !in.HasSession {
		return RouteOnboarding
	}
	switch in.ProfileStatus {
	case model.ProfileMissing:
		return RouteProfileSetup
	case model.ProfilePresent:
		return RouteMain
	default:
		return RouteOnboarding
	}
}

// Allowed はセッション状態において指定グループへの遷移が許されるかを返す。
// オンボーディングは常に許可し、それ以外は解決されたルートと同じグループのみ許可する。
func Allowed(in Input, group Group) bool {
	if group == GroupOnboarding {
		return true
	}
	return Resolve(in).Group == group
}

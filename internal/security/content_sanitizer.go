// ContentSanitizerService はCMSから取得したレシピ・カテゴリ説明のHTMLをサニタイズする。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	Sanitize(rawHTML string) string
	// PlainText はHTMLからテキストのみを取り出し、maxRunes文字で切り詰める。
	PlainText(rawHTML string, maxRunes int) string
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, h3, h4, strong, em, a, img
//   - script, iframe, style および on* イベント属性は除去
//   - imgのsrc、aのhrefはhttpsのみ
//   - aタグには target="_blank" と rel="noopener noreferrer" を付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"h3", "h4",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLをサニタイズする。空文字列には空文字列を返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

// PlainText はHTMLのテキストノードを連結し、連続する空白を1つにまとめて返す。
// maxRunesを超える場合は末尾を「…」にして切り詰める。maxRunesが0以下なら切り詰めない。
func (s *contentSanitizer) PlainText(rawHTML string, maxRunes int) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	skip := 0

loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			break loop
		case html.StartTagToken:
			name, _ := z.TagName()
			if isSkippedElement(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isSkippedElement(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}

	text := strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), " ")
	return truncateRunes(text, maxRunes)
}

func isSkippedElement(name string) bool {
	switch name {
	case "script", "style", "iframe":
		return true
	}
	return false
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace) + "…"
}

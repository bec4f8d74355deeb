// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupChecker はフォームから受け取ったテキストにHTMLマークアップが含まれるかを判定する。
// テキストは書き換えない。出力時のエスケープはテンプレートが行う。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
)

// MarkupDetector はユーザー入力テキストのマークアップ判定のインターフェースを定義する。
type MarkupDetector interface {
	// ContainsMarkup はrawにHTML要素・コメントが含まれる場合にtrueを返す。
	ContainsMarkup(raw string) bool
}

// MarkupChecker はMarkupDetectorの実装。
// bluemondayのStrictPolicyで何も除去されないテキストはそのままプレーンテキストとみなし、
// 除去される部分があればトークナイザで実際の要素かどうかを確認する。
type MarkupChecker struct {
	policy *bluemonday.Policy
}

// NewMarkupChecker はMarkupCheckerを生成する。
func NewMarkupChecker() *MarkupChecker {
	return &MarkupChecker{policy: bluemonday.StrictPolicy()}
}

// ContainsMarkup はrawにHTMLマークアップが含まれるかを返す。
//
// "a<b and c>d" のように比較記号がタグの形に見えるだけの文は、次のいずれにも当たらなければマークアップとしない。
//   - 終了タグ、コメント、DOCTYPE
//   - 値を持つ属性のあるタグ（<img src=x> など）
//   - 属性のない既知のHTML要素（<b>, <br> など）
func (c *MarkupChecker) ContainsMarkup(raw string) bool {
	if !strings.Contains(raw, "<") {
		return false
	}
	if html.UnescapeString(c.policy.Sanitize(raw)) == raw {
		return false
	}

	z := nethtml.NewTokenizer(strings.NewReader(raw))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return false
		case nethtml.EndTagToken, nethtml.CommentToken, nethtml.DoctypeToken:
			return true
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			if isElement(z.Token()) {
				return true
			}
		}
	}
}

func isElement(tok nethtml.Token) bool {
	if len(tok.Attr) == 0 {
		return tok.DataAtom != 0
	}
	for _, a := range tok.Attr {
		if a.Val != "" {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ MarkupDetector = (*MarkupChecker)(nil)

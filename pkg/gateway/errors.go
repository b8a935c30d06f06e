package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind はAI呼び出しの失敗分類です。ページ単位で完結する失敗と、
// 生成シーケンス全体を停止させるべき失敗を区別するために使います。
type FailureKind string

const (
	KindGeneration       FailureKind = "generation"
	KindTranslation      FailureKind = "translation"
	KindPromptCleaning   FailureKind = "prompt_cleaning"
	KindImage            FailureKind = "image"
	KindRateLimit        FailureKind = "rate_limit"
	KindInvalidReference FailureKind = "invalid_reference"
)

// Error は Gateway が返す分類付きエラーです。
// Message は利用者向けメッセージ、Err はバックエンドの原因です。
type Error struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind FailureKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf は err の失敗分類を返します。Gateway 由来でなければ空文字です。
func KindOf(err error) FailureKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// MessageOf は利用者向けメッセージを取り出します。Gateway 由来でなければ
// err.Error() をそのまま返すのだ。
func MessageOf(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsPipelinePausing は、連続生成シーケンスを停止させるべき失敗かどうかを
// 判定します。レート制限・参照画像不正・プロンプト整形失敗は後続ページでも
// 同じ結果になるため、続行しても無駄打ちになります。
func IsPipelinePausing(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindInvalidReference, KindPromptCleaning:
		return true
	}
	return false
}

// isResourceExhausted は、バックエンドがクォータ枯渇を示しているかを
// エラーメッセージの既知マーカーで判定します。
func isResourceExhausted(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "quota")
}

func isInvalidArgument(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "INVALID_ARGUMENT") || strings.Contains(msg, "400")
}

package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cause := errors.New("RESOURCE_EXHAUSTED: quota exceeded")
	err := newError(KindRateLimit, msgRateLimited, cause)

	t.Run("ラップされてもKindが取り出せること", func(t *testing.T) {
		wrapped := fmt.Errorf("画像生成パイプライン: %w", err)
		assert.Equal(t, KindRateLimit, KindOf(wrapped))
		assert.True(t, IsPipelinePausing(wrapped))
		assert.ErrorIs(t, wrapped, err)
	})

	t.Run("Gateway由来でないエラーは分類なし", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Equal(t, FailureKind(""), KindOf(plain))
		assert.False(t, IsPipelinePausing(plain))
	})

	t.Run("MessageOfは利用者向けメッセージを返すこと", func(t *testing.T) {
		assert.Equal(t, msgRateLimited, MessageOf(err))
		assert.Equal(t, "boom", MessageOf(errors.New("boom")))
		assert.Equal(t, "", MessageOf(nil))
	})

	t.Run("原因がUnwrapで辿れること", func(t *testing.T) {
		assert.ErrorIs(t, err, cause)
	})
}

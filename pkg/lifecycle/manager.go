// Package lifecycle は、ページ画像のライフサイクル（連続生成・手動再生成・
// キャンセル）を管理します。ページ状態の更新は常にページ単位の置換で行い、
// 途中状態が観測されないようにします。
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/gateway"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
)

// DefaultPageInterval は連続生成時のページ間隔です。画像編集モデルは遅く、
// クォータにも当たりやすいため長めに取ります。
const DefaultPageInterval = 10 * time.Second

const cancelNote = "生成をキャンセルしました"

// RegenerateRequest は手動再生成の入力です。Prompt は表示言語のままで構いません。
// ReferenceImage を指定すると、前ページ画像の代わりにそれを下敷きにします。
type RegenerateRequest struct {
	Prompt         string
	ReferenceImage string
}

// Config は Manager の動作設定です。
type Config struct {
	// PageInterval は連続生成のページ間隔です。0 以下で間隔なし（テスト用）。
	PageInterval time.Duration
}

// Manager は1つの編集セッションのプロジェクトを所有し、画像生成の進行を管理します。
type Manager struct {
	mu      sync.Mutex
	project *domain.Project

	gw       gateway.Gateway
	pipeline *prompts.Pipeline
	limiter  *rate.Limiter

	cancelled atomic.Bool
	paused    atomic.Bool

	onUpdate func(*domain.Project)
}

// NewManager は Manager を初期化します。project の所有権は Manager に移ります。
func NewManager(project *domain.Project, gw gateway.Gateway, pipeline *prompts.Pipeline, cfg Config) (*Manager, error) {
	if project == nil {
		return nil, fmt.Errorf("project は必須です")
	}
	if gw == nil {
		return nil, fmt.Errorf("gw (gateway.Gateway) は必須です")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline (*prompts.Pipeline) は必須です")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PageInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.PageInterval), 1)
	}

	return &Manager{
		project:  project,
		gw:       gw,
		pipeline: pipeline,
		limiter:  limiter,
	}, nil
}

// SetOnUpdate は、ページが置換されるたびにスナップショットを受け取る
// コールバックを登録します。進捗表示用です。
func (m *Manager) SetOnUpdate(fn func(*domain.Project)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Snapshot は現在のプロジェクトの深いコピーを返します。
func (m *Manager) Snapshot() *domain.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project.Clone()
}

// Paused は、直前の連続生成が続行不能な失敗で停止したかどうかを返します。
func (m *Manager) Paused() bool {
	return m.paused.Load()
}

// Cancelled はキャンセル要求が出ているかどうかを返します。
func (m *Manager) Cancelled() bool {
	return m.cancelled.Load()
}

// Sequence は pending のページをインデックス順に1枚ずつ生成します。
// 呼び出しごとに新しいパスとして開始し、以前のキャンセル・停止フラグは
// リセットします（Cancel は進行中のパスへの要求であり、次のパスには持ち越しません）。
// 続行しても無駄になる失敗（レート制限・参照画像不正・プロンプト整形失敗）が
// 出た時点でそのパスは打ち切り、残りのページは pending のまま残します。
// それ以外の失敗はそのページだけ error にして先へ進みます。
func (m *Manager) Sequence(ctx context.Context) error {
	if !m.autoGenerate() {
		slog.Info("画像の自動生成が無効のためシーケンスをスキップします")
		return nil
	}

	m.cancelled.Store(false)
	m.paused.Store(false)

	for i := 0; i < m.pageCount(); i++ {
		if m.cancelled.Load() {
			slog.Info("キャンセル要求によりシーケンスを停止します", "page", i)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt, ok := m.pendingPrompt(i)
		if !ok {
			continue
		}

		slog.Info("ページ画像を生成します", "page", i)
		if err := m.generateInto(ctx, i, prompt, "", false); err != nil {
			if gateway.IsPipelinePausing(err) {
				m.paused.Store(true)
				slog.Warn("続行不能な失敗のためシーケンスを停止します", "page", i, "error", err)
				return err
			}
			slog.Warn("ページの生成に失敗しましたが次のページへ進みます", "page", i, "error", err)
			continue
		}

		// 成功した場合のみページ間隔を空けます。
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Regenerate は1ページの画像を手動で再生成します。
// 表示言語のプロンプトをバックエンド言語へ翻訳し（失敗時は原文のまま）、
// 成功時は使用したプロンプトを履歴に追記します。
func (m *Manager) Regenerate(ctx context.Context, index int, req RegenerateRequest) error {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return fmt.Errorf("プロンプトが空です (page: %d)", index)
	}

	// 手動操作は新しい編集意図なので、残っていたキャンセル要求は解除します。
	m.cancelled.Store(false)

	translated, err := m.pipeline.Translate(ctx, prompt, "en")
	if err != nil {
		if gateway.KindOf(err) == gateway.KindTranslation {
			slog.Warn("翻訳に失敗したため原文のまま生成します", "page", index, "error", err)
			translated = prompt
		} else {
			return err
		}
	}

	return m.generateInto(ctx, index, translated, req.ReferenceImage, true)
}

// RegenerateText は編集指示に従ってページ本文を書き直します。画像には触れません。
func (m *Manager) RegenerateText(ctx context.Context, index int, instruction string) error {
	m.mu.Lock()
	page, ok := m.pageAtLocked(index)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("ページが存在しません: %d", index)
	}
	prevText := ""
	if index > 0 {
		prevText = m.project.Pages[index-1].Text
	}
	data := m.project.PromptData
	m.mu.Unlock()

	newText, err := m.gw.RegeneratePageText(ctx, data, prevText, page.Text, instruction)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.pageAtLocked(index)
	if !ok {
		return nil
	}
	m.replaceLocked(index, current.WithText(newText))
	return nil
}

// Cancel は index 以降の未完了ページを取り消しメモ付きの pending に戻し、
// 進行中のシーケンスに停止を要求します。完了済み・失敗済みのページは触りません。
// 停止要求はそのパス限りで、次の Sequence や手動の Regenerate で解除されます。
func (m *Manager) Cancel(index int) {
	m.cancelled.Store(true)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := index; i < len(m.project.Pages); i++ {
		page := m.project.Pages[i]
		switch page.ImageStatus {
		case domain.ImagePending, domain.ImageGenerating:
			m.replaceLocked(i, page.WithCancelled(cancelNote))
		}
	}
}

// generateInto は1ページ分の生成の本体です。整形・合成・ベース画像解決・
// 生成・コミットまでを行います。appendPrompt が真のとき、成功時に
// sourcePrompt を履歴へ追記します（手動再生成の経路）。
func (m *Manager) generateInto(ctx context.Context, index int, sourcePrompt, explicitRef string, appendPrompt bool) error {
	m.mu.Lock()
	page, ok := m.pageAtLocked(index)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("ページが存在しません: %d", index)
	}
	dispatched := page.CurrentPrompt()
	bookStyle := m.project.PromptData.BookStyle
	refs := m.project.PromptData.ReferenceImageURLs.URLs()
	m.replaceLocked(index, page.WithGenerating())
	m.mu.Unlock()

	content, style, err := m.pipeline.ExtractStyleAndClean(ctx, sourcePrompt, bookStyle)
	if err != nil {
		m.markError(index, err)
		return err
	}
	finalPrompt := prompts.ComposeFinalPrompt(content, style)

	base := explicitRef
	if base == "" {
		base = m.previousDoneImage(index)
	}
	if base == "" {
		base = asset.PlaceholderImage
	}

	resp, err := m.gw.GenerateImage(ctx, gateway.ImageRequest{
		FinalPrompt:     finalPrompt,
		BaseImage:       base,
		ReferenceImages: refs,
	})
	if err != nil {
		m.markError(index, err)
		return err
	}
	imageURL := asset.ToDataURI(resp.Data, resp.MimeType)

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.pageAtLocked(index)
	if !ok {
		return nil
	}

	// 生成中に手動再生成やキャンセルで前提が変わっていたら、この結果は捨てます。
	if m.cancelled.Load() || current.CurrentPrompt() != dispatched {
		slog.Info("前提が変わったため生成結果を破棄します", "page", index)
		// 自分が generating にしたままのページを宙に残さず pending に戻します。
		// プロンプトが変わっている場合は後続の生成が状態を確定させます。
		if current.ImageStatus == domain.ImageGenerating && current.CurrentPrompt() == dispatched {
			m.replaceLocked(index, current.WithCancelled(cancelNote))
		}
		return nil
	}

	appended := ""
	if appendPrompt {
		appended = sourcePrompt
	}
	done, err := current.WithImageDone(imageURL, appended)
	if err != nil {
		return err
	}
	m.replaceLocked(index, done)
	return nil
}

func (m *Manager) markError(index int, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pageAtLocked(index)
	if !ok {
		return
	}
	m.replaceLocked(index, page.WithImageError(gateway.MessageOf(cause)))
}

// pendingPrompt は、そのページが生成対象なら現在のプロンプトを返します。
func (m *Manager) pendingPrompt(index int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page, ok := m.pageAtLocked(index)
	if !ok || page.ImageStatus != domain.ImagePending {
		return "", false
	}
	prompt := page.CurrentPrompt()
	if strings.TrimSpace(prompt) == "" {
		return "", false
	}
	return prompt, true
}

// previousDoneImage は直前ページの完成画像を返します。なければ空文字です。
func (m *Manager) previousDoneImage(index int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index <= 0 || index-1 >= len(m.project.Pages) {
		return ""
	}
	prev := m.project.Pages[index-1]
	if prev.ImageStatus == domain.ImageDone && prev.ImageURL != "" {
		return prev.ImageURL
	}
	return ""
}

func (m *Manager) pageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.project.Pages)
}

func (m *Manager) autoGenerate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project.PromptData.AutoGenerateImages
}

func (m *Manager) pageAtLocked(index int) (domain.Page, bool) {
	if index < 0 || index >= len(m.project.Pages) {
		return domain.Page{}, false
	}
	return m.project.Pages[index], true
}

func (m *Manager) replaceLocked(index int, page domain.Page) {
	m.project.ReplacePage(index, page)
	if m.onUpdate != nil {
		m.onUpdate(m.project.Clone())
	}
}

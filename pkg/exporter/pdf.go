// Package exporter は、完成したプロジェクトを配布用のPDFへ書き出します。
// 見開きレイアウト（左に画像、右に本文）で、横向きA4の1ページに
// 絵本の1ページを割り当てます。
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-pdf/fpdf"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-storybook-kit/pkg/asset"
	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/textutil"
)

const (
	pageWidthMM  = 297.0
	pageHeightMM = 210.0
	marginMM     = 15.0

	coverFontSize = 24.0
	bodyFontSize  = 12.0

	// 画像取得の並列数。data URIが大半なので控えめで十分なのだ。
	prefetchConcurrency = 4

	missingImageText = "Immagine non disponibile"
)

var brRegex = regexp.MustCompile(`(?i)<br\s*/?>`)

type fetchedImage struct {
	data     []byte
	mimeType string
}

// PDFExporter はプロジェクトをPDFに変換します。
type PDFExporter struct {
	fetcher *asset.Fetcher
}

// NewPDFExporter は PDFExporter を初期化します。
func NewPDFExporter(fetcher *asset.Fetcher) (*PDFExporter, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher (*asset.Fetcher) は必須です")
	}
	return &PDFExporter{fetcher: fetcher}, nil
}

// Export はプロジェクト全ページをPDFとして w に書き出します。
// 画像が取得・描画できないページは中断せず、代わりのメッセージを置きます。
func (e *PDFExporter) Export(ctx context.Context, project *domain.Project, w io.Writer) error {
	if project == nil {
		return fmt.Errorf("project は必須です")
	}
	if len(project.Pages) == 0 {
		return fmt.Errorf("ページのないプロジェクトは書き出せません")
	}

	images := e.prefetchImages(ctx, project)

	pdf := fpdf.New("L", "mm", "A4", "")
	for i, page := range project.Pages {
		pdf.AddPage()
		e.renderImage(pdf, images[i], i)
		e.renderText(pdf, project, page, i)
	}

	if pdf.Err() {
		return fmt.Errorf("PDFの組み立てに失敗しました: %w", pdf.Error())
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("PDFの書き出しに失敗しました: %w", err)
	}
	return nil
}

// prefetchImages は全ページの画像を並行で取得します。失敗したページは nil のままです。
func (e *PDFExporter) prefetchImages(ctx context.Context, project *domain.Project) []*fetchedImage {
	images := make([]*fetchedImage, len(project.Pages))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	for i, page := range project.Pages {
		if page.ImageURL == "" {
			continue
		}
		g.Go(func() error {
			data, mimeType, err := e.fetcher.Fetch(ctx, page.ImageURL)
			if err != nil {
				slog.Warn("画像の取得に失敗したため代替表示にします", "page", i, "error", err)
				return nil
			}
			mu.Lock()
			images[i] = &fetchedImage{data: data, mimeType: mimeType}
			mu.Unlock()
			return nil
		})
	}

	// Goは常にnilを返すため、待ち合わせのみ行います。
	_ = g.Wait()
	return images
}

// renderImage は左半分の領域に画像をアスペクト比維持で配置します。
func (e *PDFExporter) renderImage(pdf *fpdf.Fpdf, img *fetchedImage, index int) {
	if img == nil {
		e.renderMissingImage(pdf)
		return
	}

	imageType := imageTypeFromMime(img.mimeType)
	if imageType == "" {
		slog.Warn("PDFに埋め込めない画像形式です", "page", index, "mime", img.mimeType)
		e.renderMissingImage(pdf)
		return
	}

	name := fmt.Sprintf("page-%d", index)
	opts := fpdf.ImageOptions{ImageType: imageType}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
	if info == nil || pdf.Err() {
		// 登録に失敗してもドキュメント全体は壊さず先へ進めます。
		pdf.ClearError()
		e.renderMissingImage(pdf)
		return
	}

	areaWidth := pageWidthMM/2 - marginMM*2
	areaHeight := pageHeightMM - marginMM*2

	imgWidth, imgHeight := info.Extent()
	if imgWidth <= 0 || imgHeight <= 0 {
		e.renderMissingImage(pdf)
		return
	}
	aspect := imgWidth / imgHeight

	drawWidth := areaWidth
	drawHeight := areaWidth / aspect
	if drawHeight > areaHeight {
		drawHeight = areaHeight
		drawWidth = areaHeight * aspect
	}

	x := marginMM + (areaWidth-drawWidth)/2
	y := marginMM + (areaHeight-drawHeight)/2
	pdf.ImageOptions(name, x, y, drawWidth, drawHeight, false, opts, 0, "")
}

func (e *PDFExporter) renderMissingImage(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "I", bodyFontSize)
	pdf.SetXY(marginMM, pageHeightMM/2)
	pdf.CellFormat(pageWidthMM/2-marginMM*2, 10, missingImageText, "", 0, "C", false, 0, "")
}

// renderText は右半分の領域に本文を垂直センタリングで描画します。
func (e *PDFExporter) renderText(pdf *fpdf.Fpdf, project *domain.Project, page domain.Page, index int) {
	style := project.EffectiveTextStyle(index)
	isCover := index == 0

	fontSize := parseFontSize(style.FontSize)
	if fontSize <= 0 {
		fontSize = bodyFontSize
		if isCover {
			fontSize = coverFontSize
		}
	}
	pdf.SetFont(mapFontFamily(style.FontFamily), "", fontSize)

	text := renderableText(page.Text, style.TextTransform)

	align := page.TextAlign
	if align == "" {
		align = domain.AlignLeft
		if isCover {
			align = domain.AlignCenter
		}
	}

	textX := pageWidthMM/2 + marginMM
	textWidth := pageWidthMM/2 - marginMM*2

	// ポイントをミリメートルへ換算し、行数から縦位置を決めます。
	lineHeight := fontSize * 0.3528 * 1.4
	lines := pdf.SplitText(text, textWidth)
	totalHeight := lineHeight * float64(len(lines))
	y := (pageHeightMM - totalHeight) / 2
	if y < marginMM {
		y = marginMM
	}

	pdf.SetXY(textX, y)
	pdf.MultiCell(textWidth, lineHeight, text, "", alignToPDF(align), false)
}

// renderableText は <br/> を改行として残しつつマークアップを落とし、
// 大文字・小文字変換を適用します。
func renderableText(markup string, transform domain.TextTransform) string {
	text := brRegex.ReplaceAllString(markup, "\n")
	text = textutil.StripHTML(text)

	switch transform {
	case domain.TransformUppercase:
		return strings.ToUpper(text)
	case domain.TransformLowercase:
		return strings.ToLower(text)
	}
	return text
}

// mapFontFamily はCSSのフォント指定をPDF組み込みフォントへ落とします。
func mapFontFamily(fontFamily string) string {
	family := strings.ToLower(fontFamily)
	if strings.Contains(family, "georgia") || strings.Contains(family, "serif") {
		return "Times"
	}
	return "Helvetica"
}

func parseFontSize(fontSize string) float64 {
	trimmed := strings.TrimSuffix(strings.TrimSpace(fontSize), "px")
	size, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
	if err != nil {
		return 0
	}
	return size
}

func alignToPDF(align domain.Alignment) string {
	switch align {
	case domain.AlignCenter:
		return "C"
	case domain.AlignRight:
		return "R"
	}
	return "L"
}

func imageTypeFromMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "PNG"
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/gif":
		return "GIF"
	}
	return ""
}

// Package project は、絵本プロジェクトの永続化（署名付きエンベロープの
// 保存・読み込み・旧形式からの移行）とプロジェクトの新規組み立てを提供します。
package project

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

const (
	// FileSignature は保存形式の署名です（Tell Me a Story for Kids Book）。
	FileSignature = "TL4KB"

	// CurrentVersion は保存時に書き込む形式バージョンです。
	// 1.0.0 は単一の finalImagePrompt を持ち、1.1.0 で履歴列に置き換わりました。
	CurrentVersion = "1.1.0"

	// LegacyVersion は署名なしファイルに割り当てるバージョンです。
	LegacyVersion = "0.9.0"

	// FileExtension は保存ファイルの拡張子です。
	FileExtension = ".tl4kb"
)

// persistedEnvelope はディスク上の表現です。promptData / pages の有無で
// 形式の判定を行うため、ポインタで受けます。
type persistedEnvelope struct {
	Signature  string               `json:"signature,omitempty"`
	Version    string               `json:"version,omitempty"`
	PromptData *persistedPromptData `json:"promptData,omitempty"`
	Pages      []persistedPage      `json:"pages"`
	CreatedAt  string               `json:"createdAt,omitempty"`
}

// persistedPromptData は domain.PromptData のワイヤ表現です。
// autoGenerateImages は欠落時に真とみなす必要があるためポインタで受けます。
type persistedPromptData struct {
	Themes             string                 `json:"themes"`
	OtherElements      string                 `json:"otherElements"`
	TargetAge          string                 `json:"targetAge"`
	BookStyle          domain.BookStyle       `json:"bookStyle"`
	Author             string                 `json:"author,omitempty"`
	License            string                 `json:"license,omitempty"`
	ReferenceImageURLs domain.ReferenceImages `json:"referenceImageUrls"`
	TextStyle          domain.TextStyle       `json:"textStyle"`
	AutoGenerateImages *bool                  `json:"autoGenerateImages,omitempty"`
	StoryInputMode     domain.StoryInputMode  `json:"storyInputMode,omitempty"`
	CustomTitle        string                 `json:"customTitle,omitempty"`
	CustomText         string                 `json:"customText,omitempty"`
}

// persistedPage は domain.Page のワイヤ表現に 1.0.0 形式の
// finalImagePrompt / imagePrompt フィールドを加えたものです。
type persistedPage struct {
	Text             string            `json:"text"`
	ImageURL         string            `json:"imageUrl"`
	PromptHistory    []string          `json:"imagePromptHistory,omitempty"`
	FinalImagePrompt string            `json:"finalImagePrompt,omitempty"`
	ImagePrompt      string            `json:"imagePrompt,omitempty"`
	ImageStatus      string            `json:"imageStatus"`
	ImageNote        string            `json:"imageError,omitempty"`
	TextAlign        domain.Alignment  `json:"textAlign,omitempty"`
	TextStyle        *domain.TextStyle `json:"textStyle,omitempty"`
}

// Save はプロジェクトを署名付きエンベロープのJSONに直列化します。
func Save(project *domain.Project) ([]byte, error) {
	if project == nil {
		return nil, fmt.Errorf("project は必須です")
	}

	createdAt := project.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}

	auto := project.PromptData.AutoGenerateImages
	envelope := persistedEnvelope{
		Signature:  FileSignature,
		Version:    CurrentVersion,
		PromptData: toPersistedPromptData(project.PromptData, &auto),
		Pages:      toPersistedPages(project.Pages),
		CreatedAt:  createdAt,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの直列化に失敗しました: %w", err)
	}
	return data, nil
}

// Load はプロジェクトファイルを読み込みます。受け付ける形は3段構えです:
// 正規の署名付きJSON、署名なしのレガシーJSON（手編集や「JSONとしてコピー」由来）、
// そしてそれらをzipに包んだアーカイブ。読み込んだ generating 状態は
// pending に正規化します（タスクは読み込みをまたいで生き残りません）。
func Load(raw []byte) (*domain.Project, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: ファイルが空か短すぎます", ErrUnrecognizedFormat)
	}

	jsonText := raw
	if raw[0] == 0x50 && raw[1] == 0x4B {
		extracted, err := extractFromArchive(raw)
		if err != nil {
			return nil, err
		}
		jsonText = extracted
	}

	var envelope persistedEnvelope
	if err := json.Unmarshal(jsonText, &envelope); err != nil {
		return nil, fmt.Errorf("%w: JSONの解析に失敗しました: %v", ErrUnrecognizedFormat, err)
	}

	switch {
	case envelope.Signature == FileSignature:
		if envelope.Version != CurrentVersion {
			slog.Warn("ファイルの形式バージョンがアプリと異なります。互換性の問題が出る可能性があります",
				"file_version", envelope.Version, "app_version", CurrentVersion)
		}
		if envelope.PromptData == nil || envelope.Pages == nil {
			return nil, fmt.Errorf("%w (promptData / pages)", ErrCorruptProject)
		}

	case envelope.Signature == "" && envelope.PromptData != nil && envelope.Pages != nil:
		slog.Warn("署名のないプロジェクトファイルを読み込みます。レガシー形式とみなします")
		if envelope.Version == "" {
			envelope.Version = LegacyVersion
		}
		if envelope.CreatedAt == "" {
			envelope.CreatedAt = time.Now().UTC().Format(time.RFC3339)
		}

	default:
		return nil, fmt.Errorf("%w: 署名が不正か、必須データ (promptData, pages) がありません", ErrUnrecognizedFormat)
	}

	pages := make([]domain.Page, 0, len(envelope.Pages))
	for _, p := range envelope.Pages {
		pages = append(pages, restorePage(p))
	}

	return &domain.Project{
		PromptData: fromPersistedPromptData(*envelope.PromptData),
		Pages:      pages,
		CreatedAt:  envelope.CreatedAt,
		Version:    envelope.Version,
	}, nil
}

// extractFromArchive はzipからプロジェクトJSONを取り出します。
// 優先順位: story.json という名前のファイル > 最初の *.json > 唯一のエントリ。
func extractFromArchive(raw []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	var candidates []*zip.File
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: アーカイブが空です", ErrCorruptArchive)
	}

	var target *zip.File
	for _, f := range candidates {
		if f.Name == "story.json" {
			target = f
			break
		}
	}
	if target == nil {
		for _, f := range candidates {
			if strings.HasSuffix(f.Name, ".json") {
				target = f
				break
			}
		}
	}
	if target == nil && len(candidates) == 1 {
		target = candidates[0]
	}
	if target == nil {
		return nil, fmt.Errorf("%w: プロジェクトファイル (story.json) が見つかりません", ErrCorruptArchive)
	}

	rc, err := target.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	return data, nil
}

// restorePage はワイヤ表現からページを復元します。1.0.0 形式の単一プロンプトは
// 1要素の履歴列へ移行し、中途半端な状態は pending に倒します。
func restorePage(p persistedPage) domain.Page {
	history := p.PromptHistory
	if len(history) == 0 {
		if prompt := firstNonEmpty(p.FinalImagePrompt, p.ImagePrompt); prompt != "" {
			history = []string{prompt}
		}
	}

	status := domain.ImagePhase(p.ImageStatus)
	switch status {
	case domain.ImageDone:
		if p.ImageURL == "" {
			// 画像のない done はあり得ない状態なので、作り直し対象に戻します。
			status = domain.ImagePending
		}
	case domain.ImageError:
		// そのまま保持します。
	default:
		status = domain.ImagePending
	}

	return domain.Page{
		Text:          p.Text,
		ImageURL:      p.ImageURL,
		PromptHistory: history,
		ImageStatus:   status,
		ImageNote:     p.ImageNote,
		TextAlign:     p.TextAlign,
		TextStyle:     p.TextStyle,
	}
}

func toPersistedPages(pages []domain.Page) []persistedPage {
	out := make([]persistedPage, 0, len(pages))
	for _, p := range pages {
		out = append(out, persistedPage{
			Text:          p.Text,
			ImageURL:      p.ImageURL,
			PromptHistory: p.PromptHistory,
			ImageStatus:   string(p.ImageStatus),
			ImageNote:     p.ImageNote,
			TextAlign:     p.TextAlign,
			TextStyle:     p.TextStyle,
		})
	}
	return out
}

func toPersistedPromptData(data domain.PromptData, auto *bool) *persistedPromptData {
	return &persistedPromptData{
		Themes:             data.Themes,
		OtherElements:      data.OtherElements,
		TargetAge:          data.TargetAge,
		BookStyle:          data.BookStyle,
		Author:             data.Author,
		License:            data.License,
		ReferenceImageURLs: data.ReferenceImageURLs,
		TextStyle:          data.TextStyle,
		AutoGenerateImages: auto,
		StoryInputMode:     data.StoryInputMode,
		CustomTitle:        data.CustomTitle,
		CustomText:         data.CustomText,
	}
}

func fromPersistedPromptData(data persistedPromptData) domain.PromptData {
	// autoGenerateImages は欠落時に有効とみなします。
	auto := true
	if data.AutoGenerateImages != nil {
		auto = *data.AutoGenerateImages
	}

	return domain.PromptData{
		Themes:             data.Themes,
		OtherElements:      data.OtherElements,
		TargetAge:          data.TargetAge,
		BookStyle:          data.BookStyle,
		Author:             data.Author,
		License:            data.License,
		ReferenceImageURLs: data.ReferenceImageURLs,
		TextStyle:          data.TextStyle,
		AutoGenerateImages: auto,
		StoryInputMode:     data.StoryInputMode,
		CustomTitle:        data.CustomTitle,
		CustomText:         data.CustomText,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

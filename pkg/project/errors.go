package project

import "errors"

var (
	// ErrCorruptArchive はzipアーカイブとして読めない、またはプロジェクト
	// ファイルを特定できないアーカイブを示します。
	ErrCorruptArchive = errors.New("アーカイブを読めないか、プロジェクトファイルが見つかりません")

	// ErrCorruptProject は署名済みファイルに必須データが欠けていることを示します。
	ErrCorruptProject = errors.New("プロジェクトファイルが壊れているか、必須データが欠けています")

	// ErrUnrecognizedFormat は署名も必須キーも持たない入力を示します。
	ErrUnrecognizedFormat = errors.New("認識できないファイル形式です")
)

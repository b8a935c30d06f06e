package asset

import (
	"github.com/shouni/go-utils/urlpath"
)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolveOutputPath(baseDir, fileName)
}

// ResolveSiblingPath は、入力パス（URLまたはローカルパス）と同じ場所に
// 置くファイルのパスを解決します。gs:// の隣に書き出す場合にも使えます。
func ResolveSiblingPath(inputPath, fileName string) (string, error) {
	return urlpath.ResolveOutputPath(urlpath.ResolveBaseURL(inputPath), fileName)
}

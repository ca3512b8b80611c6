package enrich

import (
	"io"
	"net/url"

	"github.com/go-shiori/go-readability"
)

// ReadabilityExtract はgo-readabilityを使用する標準のExtractor実装。
// 抽出結果の本文HTMLを返す。保存前のサニタイズは呼び出し側が行う。
func ReadabilityExtract(r io.Reader, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", err
	}
	return article.Content, nil
}

// Package opml はOPML 2.0形式の購読リストの読み書きを提供する。
// フォルダ階層はフラットに展開され、xmlUrl属性を持つoutlineのみを
// フィードとして扱う。
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// Document はOPMLドキュメントのルート要素。
type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head はOPMLのメタデータ。
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body はoutline要素のコンテナ。
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline はフィードまたはフォルダを表す。
// xmlUrl属性を持つ場合はフィード、子要素を持つ場合はフォルダ。
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Entry はフラットに展開されたフィード1件を表す。
type Entry struct {
	Title string
	URL   string
}

// Parse はOPMLドキュメントを読み込み、フィードのフラットな一覧を返す。
// フォルダ階層は保持されず、ネストされたフィードも全て展開される。
// タイトルが無いフィードはURLをタイトルとして扱う。
func Parse(r io.Reader) ([]Entry, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("OPMLのパースに失敗しました: %w", err)
	}

	var entries []Entry
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if o.XMLURL != "" {
				title := o.Title
				if title == "" {
					title = o.Text
				}
				if title == "" {
					title = o.XMLURL
				}
				entries = append(entries, Entry{Title: title, URL: o.XMLURL})
			}
			if len(o.Outlines) > 0 {
				walk(o.Outlines)
			}
		}
	}
	walk(doc.Body.Outlines)

	return entries, nil
}

// Export はフィード一覧からOPML 2.0ドキュメントを生成する。
func Export(title string, entries []Entry, createdAt time.Time) ([]byte, error) {
	doc := Document{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: createdAt.Format(time.RFC1123Z),
		},
	}

	for _, e := range entries {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:   e.Title,
			Title:  e.Title,
			Type:   "rss",
			XMLURL: e.URL,
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("OPMLの生成に失敗しました: %w", err)
	}

	return append([]byte(xml.Header), output...), nil
}

package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// FSCatalog はローカルファイルシステム上のスキャン済みドキュメント置き場を
// カタログとして走査します
type FSCatalog struct {
	// InputRoot は走査対象のルートディレクトリです
	InputRoot string
	// OutputRoot は成果物の出力先ルートです。output_ref の導出に使います
	OutputRoot string
	// Extensions は対象拡張子（小文字、ドット付き）。空なら .pdf のみ
	Extensions []string
}

// NewFSCatalog は新しい FSCatalog を作成します
func NewFSCatalog(inputRoot, outputRoot string) *FSCatalog {
	return &FSCatalog{
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Extensions: []string{".pdf"},
	}
}

// Walk は InputRoot 以下を再帰的に走査し、対象ファイルごとに fn を呼び出します
// input_ref は InputRoot からの相対パス、output_ref は OutputRef による導出値です
func (c *FSCatalog) Walk(ctx context.Context, fn func(Entry) error) error {
	return filepath.WalkDir(c.InputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !c.allowed(path) {
			return nil
		}

		rel, err := filepath.Rel(c.InputRoot, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		return fn(Entry{
			InputRef:  rel,
			OutputRef: c.OutputRef(rel),
		})
	})
}

// OutputRef は input_ref から output_ref を導出します
func (c *FSCatalog) OutputRef(inputRef string) string {
	return OutputRefFor(inputRef, c.OutputRoot)
}

// OutputRefFor は input_ref から output_ref を決定的に導出します
// 例: "invoices/2024/a.pdf" → "<outputRoot>/invoices/2024/a_ocr.pdf"
func OutputRefFor(inputRef, outputRoot string) string {
	ext := filepath.Ext(inputRef)
	stem := strings.TrimSuffix(filepath.Base(inputRef), ext)
	dir := filepath.Dir(inputRef)
	return filepath.ToSlash(filepath.Join(outputRoot, dir, stem+"_ocr"+ext))
}

func (c *FSCatalog) allowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	exts := c.Extensions
	if len(exts) == 0 {
		exts = []string{".pdf"}
	}
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

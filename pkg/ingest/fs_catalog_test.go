package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("dummy"), 0o644))
}

func TestFSCatalog_WalkCollectsPDFsRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"))
	writeFile(t, filepath.Join(root, "invoices", "2024", "b.pdf"))
	writeFile(t, filepath.Join(root, "invoices", "readme.txt")) // 対象外
	writeFile(t, filepath.Join(root, "c.PDF"))                  // 拡張子は大文字小文字を区別しない

	catalog := NewFSCatalog(root, "/out")

	var entries []Entry
	err := catalog.Walk(context.Background(), func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)

	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, e.InputRef)
	}
	assert.ElementsMatch(t, []string{"a.pdf", "invoices/2024/b.pdf", "c.PDF"}, refs)
}

func TestFSCatalog_WalkStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"))
	writeFile(t, filepath.Join(root, "b.pdf"))

	catalog := NewFSCatalog(root, "/out")

	calls := 0
	err := catalog.Walk(context.Background(), func(e Entry) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestOutputRefFor(t *testing.T) {
	tests := []struct {
		name     string
		inputRef string
		want     string
	}{
		{
			name:     "ルート直下のファイル",
			inputRef: "a.pdf",
			want:     "/out/a_ocr.pdf",
		},
		{
			name:     "ネストしたディレクトリ",
			inputRef: "invoices/2024/b.pdf",
			want:     "/out/invoices/2024/b_ocr.pdf",
		},
		{
			name:     "ステムにドットを含む",
			inputRef: "docs/report.v2.pdf",
			want:     "/out/docs/report.v2_ocr.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputRefFor(tt.inputRef, "/out"))
		})
	}
}

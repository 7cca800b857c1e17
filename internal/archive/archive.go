// Package archive turns workflow run log archives and local log files into
// plain text documents.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// MaxEntrySize bounds the uncompressed size of a single log entry.
const MaxEntrySize = 512 << 20

var zipMagic = []byte("PK\x03\x04")

// ErrEntryTooLarge is returned for entries larger than MaxEntrySize.
var ErrEntryTooLarge = errors.New("archive entry too large")

// Document is one log file.
type Document struct {
	Name string
	Text string
}

// ExtractLogs returns every file entry of a zip archive in archive order.
func ExtractLogs(data []byte) ([]Document, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open log archive: %w", err)
	}

	var docs []Document
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		text, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		docs = append(docs, Document{Name: f.Name, Text: text})
	}
	return docs, nil
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxEntrySize {
		return "", ErrEntryTooLarge
	}
	return string(data), nil
}

// PreferJobLogs drops per-step logs when the archive also carries the
// whole-job logs at its top level. GitHub archives contain both, and
// scanning both would report every failure twice.
func PreferJobLogs(docs []Document) []Document {
	hasTopLevel := false
	for _, d := range docs {
		if !strings.Contains(d.Name, "/") {
			hasTopLevel = true
			break
		}
	}
	if !hasTopLevel {
		return docs
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !strings.Contains(d.Name, "/") {
			out = append(out, d)
		}
	}
	return out
}

// Texts returns the document bodies in order.
func Texts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return texts
}

// ReadFile loads a local log. Zip archives are expanded; anything else is a
// single plain text document.
func ReadFile(p string) ([]Document, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}

	if bytes.HasPrefix(data, zipMagic) || strings.EqualFold(filepath.Ext(p), ".zip") {
		return ExtractLogs(data)
	}
	return []Document{{Name: filepath.Base(p), Text: string(data)}}, nil
}

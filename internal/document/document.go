// Package document loads engineering documents from disk and renders them to
// the plain text buffer that extraction and highlighting work on.
package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hpungsan/reqlens/internal/cache"
	"github.com/hpungsan/reqlens/internal/errors"
)

// Type is the detected document format.
type Type string

const (
	TypeText     Type = "txt"
	TypeMarkdown Type = "md"
	TypeHTML     Type = "html"
)

var extensionTypes = map[string]Type{
	".txt":      TypeText,
	".text":     TypeText,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".html":     TypeHTML,
	".htm":      TypeHTML,
}

// Binary formats whose byte extraction is left to external converters.
var binaryExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".odt":  true,
	".rtf":  true,
}

// Document is a loaded document and its rendered text buffer.
type Document struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
	Type Type   `json:"type"`

	// Size is the on-disk size in bytes
	Size int64 `json:"size"`

	// Text is the rendered plain text buffer
	Text string `json:"-"`
}

// Signature returns the extraction cache key for the document's current content.
func (d *Document) Signature() string {
	return cache.Signature(string(d.Type), d.Text, d.Size)
}

// ID derives a stable document id from an absolute path.
func ID(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(absPath))).String()
}

// IDForPath resolves path to an absolute path and returns its document id.
func IDForPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewInvalidRequest("invalid path: " + err.Error())
	}
	return ID(abs), nil
}

// DetectType maps a file extension to a document type.
// Binary formats are rejected with UNSUPPORTED_DOCUMENT; unknown extensions
// are treated as text when the content is valid UTF-8.
func DetectType(path string, content []byte) (Type, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t, nil
	}
	if binaryExtensions[ext] || !utf8.Valid(content) {
		return "", errors.NewUnsupportedDocument(ext)
	}
	return TypeText, nil
}

// Load reads and renders the document at path.
func Load(path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid path: " + err.Error())
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	if info.IsDir() {
		return nil, errors.NewInvalidRequest("path is a directory: " + path)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	docType, err := DetectType(abs, raw)
	if err != nil {
		return nil, err
	}

	text, err := Render(docType, raw)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return &Document{
		ID:   ID(abs),
		Path: abs,
		Name: filepath.Base(abs),
		Type: docType,
		Size: info.Size(),
		Text: text,
	}, nil
}

// Render converts raw document bytes to the plain text buffer.
func Render(t Type, raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	switch t {
	case TypeMarkdown:
		return RenderMarkdown(raw), nil
	case TypeHTML:
		md, err := HTMLToMarkdown(string(raw))
		if err != nil {
			return "", err
		}
		return RenderMarkdown([]byte(md)), nil
	default:
		return strings.ReplaceAll(string(raw), "\r\n", "\n"), nil
	}
}

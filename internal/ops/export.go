package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/export"
	"github.com/hpungsan/reqlens/internal/requirement"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string // document to export
	Format string // csv, json or text
	Out    string // optional, default: ~/.reqlens/exports/<document>-<timestamp>.<ext>

	// SelectedOnly exports only selected candidates
	SelectedOnly bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string        `json:"path"`
	Format     export.Format `json:"format"`
	Count      int           `json:"count"`
	ExportedAt int64         `json:"exported_at"`
}

// Export writes the document's candidates to a file. The file is written
// next to its destination and renamed into place, so an existing export is
// only replaced by a complete one.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}

	doc, res, err := workingSet(ctx, env, input.Path)
	if err != nil {
		return nil, err
	}
	cands := res.Candidates
	if input.SelectedOnly {
		cands = make([]requirement.Candidate, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			if c.Selected {
				cands = append(cands, c)
			}
		}
	}

	now := time.Now()
	exportPath := input.Out
	if exportPath == "" {
		exportPath, err = defaultExportPath(doc.Name, format, now)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidateExportPath(exportPath, format.Extension(), env.Config); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0o700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}

	w := bufio.NewWriter(file)
	if err := export.Write(w, format, cands, doc.Name); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails when the destination exists; the existing
	// file is kept rather than replaced non-atomically.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      len(cands),
		ExportedAt: now.Unix(),
	}, nil
}

// defaultExportPath builds ~/.reqlens/exports/<document>-<timestamp>.<ext>.
func defaultExportPath(docName string, format export.Format, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(docName, filepath.Ext(docName))
	filename := fmt.Sprintf("%s-%s%s", SanitizeForFilename(base), now.Format("2006-01-02T150405"), format.Extension())
	return filepath.Join(dir, filename), nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flockops/safeguard/internal/core"
)

// Result documents stay small (PDF summaries), but the vendor has served
// multi-megabyte attachments; cap the download defensively.
const maxFileSize = 32 << 20

var fileClient = &http.Client{Timeout: 60 * time.Second}

// SaveFromURL downloads a result document and stores it, returning the
// handle used by the binary-attachment workflow field.
func (s *Store) SaveFromURL(ctx context.Context, url, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", core.ErrInternal("building download request", err)
	}
	resp, err := fileClient.Do(req)
	if err != nil {
		return "", core.ErrVendor("REPORT_DOWNLOAD", "downloading result document").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", core.ErrVendor("REPORT_DOWNLOAD", fmt.Sprintf("result document returned %d", resp.StatusCode))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return "", core.ErrVendor("REPORT_DOWNLOAD", "reading result document").WithCause(err)
	}

	handle := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stored_files (handle, filename, content, created_at)
		VALUES (?, ?, ?, ?)`,
		handle, filename, content, fmtTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("storing file: %w", err)
	}

	s.logger.Debug("stored result document", "handle", handle, "bytes", len(content))
	return handle, nil
}

// FileByHandle returns a stored document's filename and content.
func (s *Store) FileByHandle(ctx context.Context, handle string) (string, []byte, error) {
	var (
		filename string
		content  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT filename, content FROM stored_files WHERE handle = ?`, handle).
		Scan(&filename, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, core.ErrNotFound("FILE_NOT_FOUND", "stored file does not exist")
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying stored file: %w", err)
	}
	return filename, content, nil
}

package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// BackupSink downloads asset bytes to local files before deletion. Targets
// are deterministic ({dir}/{space_id}/{asset_id}{ext}), and an existing
// target is an idempotent skip, so re-runs never download twice.
type BackupSink struct {
	dir        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBackupSink creates a sink rooted at dir. Asset URLs are public CDN
// links, so downloads use a plain unauthenticated client.
func NewBackupSink(dir string, logger *slog.Logger) *BackupSink {
	return &BackupSink{
		dir:        dir,
		httpClient: &http.Client{},
		logger:     logger.With(slog.String("component", "backup")),
	}
}

// TargetPath returns the deterministic backup location for an asset.
func (s *BackupSink) TargetPath(spaceID string, assetID int64, assetURL string) string {
	extension := filepath.Ext(assetURL)
	return filepath.Join(s.dir, spaceID, strconv.FormatInt(assetID, 10)+extension)
}

// Backup streams the asset to its target path, creating parent directories
// as needed. Returns the target path; a failed download is reported as a
// *DownloadError for the caller's continue-on-failure policy.
func (s *BackupSink) Backup(ctx context.Context, spaceID string, assetID int64, assetURL string) (string, error) {
	target := s.TargetPath(spaceID, assetID, assetURL)

	if _, err := os.Stat(target); err == nil {
		s.logger.Info("skipping download, already backed up",
			slog.String("url", assetURL),
			slog.String("target", target),
		)
		return target, nil
	}

	s.logger.Info("downloading asset",
		slog.String("url", assetURL),
		slog.String("target", target),
	)

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return "", fmt.Errorf("building download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &DownloadError{URL: assetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DownloadError{URL: assetURL, StatusCode: resp.StatusCode}
	}

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(target)
		return "", &DownloadError{URL: assetURL, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("finishing backup file: %w", err)
	}

	return target, nil
}

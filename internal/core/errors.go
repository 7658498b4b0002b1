package core

import "fmt"

// FolderCycleError reports a cycle in the folder graph discovered during
// path resolution. The remote data is not guaranteed acyclic, and resolving
// through a cycle would otherwise never terminate.
type FolderCycleError struct {
	FolderID string
	Chain    []string
}

func (e *FolderCycleError) Error() string {
	return fmt.Sprintf("folder %s is part of a parent cycle (chain: %v)", e.FolderID, e.Chain)
}

// DownloadError reports a failed asset backup download. It is recoverable
// when the run is configured to continue on download failures, fatal
// otherwise.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot download asset %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("cannot download asset %s, got status code %d", e.URL, e.StatusCode)
}

func (e *DownloadError) Unwrap() error { return e.Err }

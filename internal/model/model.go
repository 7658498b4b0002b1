// Package model defines the domain records for assetsweep: the assets and
// asset folders fetched from a Storyblok space, plus the enrichment state
// that makes a cleanup run resumable.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Usage is the tri-state classification of an asset.
// It is computed at most once per asset and cached permanently: the
// reference search behind it is the dominant network cost of a run.
type Usage int

const (
	UsageUnknown Usage = iota
	UsageInUse
	UsageNotInUse
)

func (u Usage) String() string {
	switch u {
	case UsageInUse:
		return "in_use"
	case UsageNotInUse:
		return "not_in_use"
	default:
		return "unknown"
	}
}

// Known reports whether the classification has been computed.
func (u Usage) Known() bool {
	return u != UsageUnknown
}

// MarshalJSON encodes the usage as true/false, or null when unknown, so
// cached snapshots stay readable as plain booleans.
func (u Usage) MarshalJSON() ([]byte, error) {
	switch u {
	case UsageInUse:
		return []byte("true"), nil
	case UsageNotInUse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (u *Usage) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*u = UsageInUse
	case "false":
		*u = UsageNotInUse
	case "null":
		*u = UsageUnknown
	default:
		return fmt.Errorf("invalid usage value %q", data)
	}
	return nil
}

// FolderRef is a nullable reference to an asset folder. The management API
// serves folder ids inconsistently across record generations: a number, a
// numeric string, an empty string, or null. All of null/""/0/"0" mean the
// space root.
type FolderRef struct {
	raw string // normalized decimal form, "" when null
}

// FolderRefFrom builds a reference from a plain id, mainly for tests and
// for the root sentinel (0).
func FolderRefFrom(id int64) FolderRef {
	if id == 0 {
		return FolderRef{}
	}
	return FolderRef{raw: strconv.FormatInt(id, 10)}
}

// IsRoot reports whether the reference points at the space root.
func (r FolderRef) IsRoot() bool {
	return r.raw == "" || r.raw == "0"
}

// Key returns a stable map key for the reference. Root sentinels collapse
// to the empty key.
func (r FolderRef) Key() string {
	if r.IsRoot() {
		return ""
	}
	return r.raw
}

func (r FolderRef) String() string {
	if r.IsRoot() {
		return "<root>"
	}
	return r.raw
}

func (r FolderRef) MarshalJSON() ([]byte, error) {
	if r.raw == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(r.raw, 10, 64); err == nil {
		return []byte(r.raw), nil
	}
	return json.Marshal(r.raw)
}

func (r *FolderRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		r.raw = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid folder reference %q: %w", data, err)
	}
	r.raw = n.String()
	return nil
}

// Asset is one uploaded file in the space. The enrichment fields
// (IsInUse, ToBeDeleted, IsDeleted, BackedUpTo) are persisted alongside the
// raw record so a run can resume exactly where it left off.
type Asset struct {
	ID       int64     `json:"id"`
	Filename string    `json:"filename"`
	FolderID FolderRef `json:"asset_folder_id"`

	// Computed once, then durable.
	IsInUse Usage `json:"is_in_use,omitempty"`

	// Recomputed every run from the blacklist policy.
	ToBeDeleted bool `json:"to_be_deleted"`

	// Set only after a confirmed successful remote deletion.
	IsDeleted bool `json:"is_deleted,omitempty"`

	// Local path of a completed backup, if any.
	BackedUpTo string `json:"backed_up_to,omitempty"`
}

// ActionCandidate reports whether the asset is still a candidate for
// backup/deletion: classified as unused and not already deleted.
func (a *Asset) ActionCandidate() bool {
	return a.IsInUse == UsageNotInUse && !a.IsDeleted
}

// Folder is a hierarchical grouping of assets. Folders are read-only within
// a run; only their derived paths are consumed.
type Folder struct {
	ID       FolderRef `json:"id"`
	Name     string    `json:"name"`
	ParentID FolderRef `json:"parent_id"`
}

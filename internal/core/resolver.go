// Package core implements the reconciliation engine: folder path
// resolution, usage classification, the blacklist eligibility policy, asset
// backup and the orchestrating run state machine.
package core

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/assetsweep/assetsweep/internal/model"
)

// memoSize bounds the resolver's memo. Spaces rarely carry more than a few
// hundred folders; the bound just caps pathological inputs.
const memoSize = 4096

// PathResolver derives the full hierarchical path of a folder, e.g.
// "/Marketing/Logos". Resolution is recursive over parent references and
// memoized for the lifetime of the resolver; folders are immutable within a
// run, so memoized values never go stale.
type PathResolver struct {
	folders map[string]model.Folder
	memo    *lru.Cache[string, string]
	logger  *slog.Logger
}

// NewPathResolver indexes the known folder set.
func NewPathResolver(folders []model.Folder, logger *slog.Logger) *PathResolver {
	index := make(map[string]model.Folder, len(folders))
	for _, folder := range folders {
		index[folder.ID.Key()] = folder
	}
	memo, _ := lru.New[string, string](memoSize)
	return &PathResolver{
		folders: index,
		memo:    memo,
		logger:  logger.With(slog.String("component", "path_resolver")),
	}
}

// Resolve returns the path for a folder reference. Root sentinels and
// unknown folder ids resolve to "/". A folder whose parent is missing from
// the known set is treated as if it were root, with a warning: the remote
// folder graph is not guaranteed consistent and a dangling parent should
// not sink the whole run. A parent cycle fails with *FolderCycleError.
func (r *PathResolver) Resolve(id model.FolderRef) (string, error) {
	return r.resolve(id, map[string]struct{}{}, nil)
}

func (r *PathResolver) resolve(id model.FolderRef, visited map[string]struct{}, chain []string) (string, error) {
	if id.IsRoot() {
		return "/", nil
	}

	key := id.Key()
	if path, ok := r.memo.Get(key); ok {
		return path, nil
	}

	folder, ok := r.folders[key]
	if !ok {
		// Asset points at a folder the API never returned.
		return "/", nil
	}

	if _, seen := visited[key]; seen {
		return "", &FolderCycleError{FolderID: key, Chain: append(chain, key)}
	}
	visited[key] = struct{}{}
	chain = append(chain, key)

	var path string
	switch {
	case folder.ParentID.IsRoot():
		path = "/" + folder.Name
	default:
		if _, ok := r.folders[folder.ParentID.Key()]; !ok {
			r.logger.Warn("parent folder does not exist, treating folder as root",
				slog.String("folder_id", key),
				slog.String("parent_id", folder.ParentID.String()),
			)
			path = "/" + folder.Name
		} else {
			parentPath, err := r.resolve(folder.ParentID, visited, chain)
			if err != nil {
				return "", err
			}
			if parentPath == "/" {
				path = "/" + folder.Name
			} else {
				path = parentPath + "/" + folder.Name
			}
		}
	}

	r.memo.Add(key, path)
	return path, nil
}

// ResolveAll maps every known folder id to its path, plus the root sentinel.
func (r *PathResolver) ResolveAll() (map[string]string, error) {
	paths := make(map[string]string, len(r.folders)+1)
	paths[""] = "/"
	for key, folder := range r.folders {
		path, err := r.Resolve(folder.ID)
		if err != nil {
			return nil, err
		}
		paths[key] = path
	}
	return paths, nil
}

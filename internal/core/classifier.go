package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/assetsweep/assetsweep/internal/model"
	"github.com/assetsweep/assetsweep/internal/storyblok"
)

// storageHostMarker splits an asset URL into host prefix and the storage
// path that content entries reference.
const storageHostMarker = ".storyblok.com"

// Classifier decides whether an asset is referenced by any content entry.
// One reference-search call per asset; the orchestrator is responsible for
// skipping assets whose classification is already cached.
type Classifier struct {
	client *storyblok.Client
	logger *slog.Logger
}

// NewClassifier creates a classifier on the given transport.
func NewClassifier(client *storyblok.Client, logger *slog.Logger) *Classifier {
	return &Classifier{
		client: client,
		logger: logger.With(slog.String("component", "classifier")),
	}
}

// IsInUse reports whether at least one story references the asset's storage
// path. Transport failures are returned as-is; classification never guesses.
func (c *Classifier) IsInUse(ctx context.Context, asset *model.Asset) (bool, error) {
	fragment := storagePath(asset.Filename)

	query := url.Values{}
	query.Set("reference_search", fragment)
	query.Set("per_page", "1")
	query.Set("page", "1")

	var payload map[string]json.RawMessage
	if err := c.client.GetJSON(ctx, "/stories", query, &payload); err != nil {
		return false, err
	}

	raw, ok := payload["stories"]
	if !ok {
		present := make([]string, 0, len(payload))
		for field := range payload {
			present = append(present, field)
		}
		sort.Strings(present)
		return false, &storyblok.UnexpectedShapeError{Field: "stories", Present: present}
	}

	var stories []json.RawMessage
	if err := json.Unmarshal(raw, &stories); err != nil {
		return false, fmt.Errorf("decoding stories: %w", err)
	}
	// A null stories field is not an empty result; never guess "unused".
	if stories == nil {
		return false, fmt.Errorf("null stories field in reference search response")
	}
	return len(stories) != 0, nil
}

// storagePath strips the storage host prefix from an asset URL, leaving the
// path fragment stories reference. URLs not hosted on the known storage
// domain fall back to their URL path.
func storagePath(assetURL string) string {
	if i := strings.Index(assetURL, storageHostMarker); i >= 0 {
		return assetURL[i+len(storageHostMarker):]
	}
	if u, err := url.Parse(assetURL); err == nil && u.Path != "" {
		return u.Path
	}
	return assetURL
}

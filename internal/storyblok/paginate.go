package storyblok

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
)

// PageSize is the fixed page size for collection endpoints.
const PageSize = 100

// totalHeader is the response header carrying the collection's total item
// count. Not every deployment serves it, so it is only a termination hint.
const totalHeader = "Total"

// FetchAll walks a paginated collection endpoint and returns every item in
// API order, exactly once. itemField names the JSON field holding the page's
// items (e.g. "assets", "asset_folders").
//
// Termination conditions, in priority order per page:
//  1. the server-reported total has been accumulated;
//  2. the page's id set equals the previous page's id set — a server-side
//     pagination bug serving the same page forever; the duplicate page is
//     dropped;
//  3. a short page was returned;
//  4. otherwise advance to the next page.
//
// A fresh call always re-walks from page 1; resumability lives in the
// snapshot store, not here.
func FetchAll(ctx context.Context, client *Client, path, itemField string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	var prevIDs map[string]struct{}

	for page := 1; ; page++ {
		client.logger.Info("fetching page",
			slog.String("path", path),
			slog.Int("page", page),
		)

		query := url.Values{}
		query.Set("per_page", strconv.Itoa(PageSize))
		query.Set("page", strconv.Itoa(page))

		resp, err := client.Do(ctx, http.MethodGet, path, query)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, &StatusError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}

		items, err := pageItems(resp.Body, itemField)
		if err != nil {
			return nil, err
		}

		ids := itemIDs(items)

		if page > 1 && len(ids) > 0 && sameIDSet(ids, prevIDs) {
			client.logger.Warn("server repeated the previous page, stopping",
				slog.String("path", path),
				slog.Int("page", page),
			)
			return all, nil
		}

		all = append(all, items...)
		prevIDs = ids

		if total, ok := collectionTotal(resp.Header); ok && len(all) >= total {
			return all, nil
		}
		if len(items) < PageSize {
			return all, nil
		}
	}
}

// pageItems extracts the collection field from a page payload, failing with
// *UnexpectedShapeError when the field is absent.
func pageItems(body []byte, itemField string) ([]json.RawMessage, error) {
	var payload map[string]json.RawMessage
	if err := decodeJSON(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding page payload: %w", err)
	}

	raw, ok := payload[itemField]
	if !ok {
		present := make([]string, 0, len(payload))
		for field := range payload {
			present = append(present, field)
		}
		sort.Strings(present)
		return nil, &UnexpectedShapeError{Field: itemField, Present: present}
	}

	var items []json.RawMessage
	if err := decodeJSON(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding %q items: %w", itemField, err)
	}
	return items, nil
}

// itemIDs collects the id field of each item, normalized to a string.
// Items without an id are keyed by their raw bytes so duplicate-page
// detection still has something to compare.
func itemIDs(items []json.RawMessage) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(item, &probe); err == nil && len(probe.ID) > 0 {
			ids[string(probe.ID)] = struct{}{}
			continue
		}
		ids[string(item)] = struct{}{}
	}
	return ids
}

func sameIDSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func collectionTotal(header http.Header) (int, bool) {
	value := header.Get(totalHeader)
	if value == "" {
		return 0, false
	}
	total, err := strconv.Atoi(value)
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

func decodeJSON(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

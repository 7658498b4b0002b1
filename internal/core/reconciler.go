package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/assetsweep/assetsweep/internal/model"
	"github.com/assetsweep/assetsweep/internal/store"
	"github.com/assetsweep/assetsweep/internal/storyblok"
)

// defaultCheckpointEvery is how many fresh classifications may accumulate
// before the asset snapshot is persisted. A crash loses at most this much
// classification work.
const defaultCheckpointEvery = 25

// Options configures a reconciliation run.
type Options struct {
	SpaceID                   string
	UseCache                  bool
	Backup                    bool
	Delete                    bool
	ContinueOnDownloadFailure bool
	Blacklist                 Blacklist

	// CheckpointEvery overrides the classification checkpoint interval.
	// Zero means the default.
	CheckpointEvery int
}

// PathAggregate is the per-folder-path summary row.
type PathAggregate struct {
	Path        string
	NotInUse    int
	ToBeDeleted int
}

// Report is the outcome of a run.
type Report struct {
	RunID        string
	SpaceID      string
	TotalAssets  int
	TotalFolders int

	// Classified counts classifications performed by this run (cached
	// results are not recounted).
	Classified int

	NotInUse int
	Eligible int

	BackedUp         int
	Deleted          int
	SkippedDownloads int
	DeleteConfirmed  bool

	// Aggregates is sorted by path.
	Aggregates []PathAggregate
}

// ConfirmFunc gates the destructive phase. It is invoked once, after the
// summary is complete and before any backup/delete, and its result is
// honored only when deletion was requested. The core never prompts itself.
type ConfirmFunc func(report *Report) bool

// Reconciler sequences the end-to-end run:
// load-or-fetch, classify, resolve paths, filter, summarize, confirm,
// act, persist. Execution is strictly sequential; assets are processed in
// the order the API returned them.
type Reconciler struct {
	client *storyblok.Client
	store  *store.Store
	sink   *BackupSink
	opts   Options
	logger *slog.Logger
	runID  string
}

// NewReconciler wires a run.
func NewReconciler(client *storyblok.Client, st *store.Store, sink *BackupSink, opts Options, logger *slog.Logger) *Reconciler {
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = defaultCheckpointEvery
	}
	runID := uuid.NewString()
	return &Reconciler{
		client: client,
		store:  st,
		sink:   sink,
		opts:   opts,
		logger: logger.With(
			slog.String("component", "reconciler"),
			slog.String("run_id", runID),
			slog.String("space_id", opts.SpaceID),
		),
		runID: runID,
	}
}

// Run executes the full state machine. Every error is fatal to the run
// except download failures when continue-on-download-failure is set; those
// skip the affected asset, including its deletion.
func (r *Reconciler) Run(ctx context.Context, confirm ConfirmFunc) (*Report, error) {
	assets, folders, err := r.loadOrFetch(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:        r.runID,
		SpaceID:      r.opts.SpaceID,
		TotalAssets:  len(assets),
		TotalFolders: len(folders),
	}

	if err := r.classify(ctx, assets, report); err != nil {
		return nil, err
	}

	resolver := NewPathResolver(folders, r.logger)
	paths, err := resolver.ResolveAll()
	if err != nil {
		return nil, err
	}

	r.filter(assets, paths, report)

	report.DeleteConfirmed = confirm(report) && r.opts.Delete

	if err := r.act(ctx, assets, report); err != nil {
		return nil, err
	}

	return report, nil
}

// loadOrFetch returns the asset and folder collections, from the snapshot
// store when caching is enabled and a snapshot exists, from the API
// otherwise. Fresh fetches are persisted immediately.
func (r *Reconciler) loadOrFetch(ctx context.Context) ([]*model.Asset, []model.Folder, error) {
	var assets []*model.Asset
	loaded := false
	if r.opts.UseCache {
		ok, err := r.store.Load(ctx, r.opts.SpaceID, store.KindAssets, &assets)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			r.logger.Info("loaded assets from cache", slog.Int("count", len(assets)))
			loaded = true
		}
	}
	if !loaded {
		raw, err := storyblok.FetchAll(ctx, r.client, "/assets", "assets")
		if err != nil {
			return nil, nil, err
		}
		assets, err = decodeAssets(raw)
		if err != nil {
			return nil, nil, err
		}
		if err := r.store.Save(ctx, r.opts.SpaceID, store.KindAssets, assets); err != nil {
			return nil, nil, err
		}
	}

	var folders []model.Folder
	loaded = false
	if r.opts.UseCache {
		ok, err := r.store.Load(ctx, r.opts.SpaceID, store.KindAssetFolders, &folders)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			r.logger.Info("loaded asset folders from cache", slog.Int("count", len(folders)))
			loaded = true
		}
	}
	if !loaded {
		raw, err := storyblok.FetchAll(ctx, r.client, "/asset_folders", "asset_folders")
		if err != nil {
			return nil, nil, err
		}
		folders, err = decodeFolders(raw)
		if err != nil {
			return nil, nil, err
		}
		if err := r.store.Save(ctx, r.opts.SpaceID, store.KindAssetFolders, folders); err != nil {
			return nil, nil, err
		}
	}

	return assets, folders, nil
}

// classify fills in the usage state of every unclassified asset, persisting
// the snapshot at every checkpoint so interrupted work is kept.
func (r *Reconciler) classify(ctx context.Context, assets []*model.Asset, report *Report) error {
	classifier := NewClassifier(r.client, r.logger)

	r.logger.Info("checking for assets in use, this might take a while")

	sinceCheckpoint := 0
	for _, asset := range assets {
		if asset.IsInUse.Known() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		inUse, err := classifier.IsInUse(ctx, asset)
		if err != nil {
			return fmt.Errorf("classifying asset %d: %w", asset.ID, err)
		}
		if inUse {
			asset.IsInUse = model.UsageInUse
		} else {
			asset.IsInUse = model.UsageNotInUse
		}

		report.Classified++
		sinceCheckpoint++
		if sinceCheckpoint >= r.opts.CheckpointEvery {
			r.logger.Info("classification progress",
				slog.Int("classified", report.Classified),
				slog.Int("total", len(assets)),
			)
			if err := r.persistAssets(ctx, assets); err != nil {
				return err
			}
			sinceCheckpoint = 0
		}
	}

	if sinceCheckpoint > 0 {
		return r.persistAssets(ctx, assets)
	}
	return nil
}

// filter recomputes eligibility for every action candidate and builds the
// per-path aggregates.
func (r *Reconciler) filter(assets []*model.Asset, paths map[string]string, report *Report) {
	counts := make(map[string]*PathAggregate)

	for _, asset := range assets {
		asset.ToBeDeleted = false

		if !asset.ActionCandidate() {
			continue
		}
		report.NotInUse++

		path, ok := paths[asset.FolderID.Key()]
		if !ok {
			path = "/"
		}

		eligible := r.opts.Blacklist.ShouldDelete(path, asset.Filename)
		asset.ToBeDeleted = eligible
		if eligible {
			report.Eligible++
		} else {
			r.logger.Info("skipping blacklisted asset",
				slog.Int64("asset_id", asset.ID),
				slog.String("path", path),
			)
		}

		agg, ok := counts[path]
		if !ok {
			agg = &PathAggregate{Path: path}
			counts[path] = agg
		}
		agg.NotInUse++
		if eligible {
			agg.ToBeDeleted++
		}
	}

	report.Aggregates = make([]PathAggregate, 0, len(counts))
	for _, agg := range counts {
		report.Aggregates = append(report.Aggregates, *agg)
	}
	sort.Slice(report.Aggregates, func(i, j int) bool {
		return report.Aggregates[i].Path < report.Aggregates[j].Path
	})
}

// act backs up and deletes eligible assets. Per asset the sequencing is
// strict: a requested backup must succeed before deletion is attempted, and
// state is persisted after every mutation.
func (r *Reconciler) act(ctx context.Context, assets []*model.Asset, report *Report) error {
	if !r.opts.Backup && !report.DeleteConfirmed {
		r.logger.Info("nothing to do, deletion not confirmed and backup disabled")
		return nil
	}

	for _, asset := range assets {
		if !asset.ToBeDeleted || asset.IsDeleted {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.opts.Backup {
			target, err := r.sink.Backup(ctx, r.opts.SpaceID, asset.ID, asset.Filename)
			if err != nil {
				var dlErr *DownloadError
				if errors.As(err, &dlErr) && r.opts.ContinueOnDownloadFailure {
					r.logger.Warn("download failed, skipping asset",
						slog.Int64("asset_id", asset.ID),
						slog.String("error", dlErr.Error()),
					)
					report.SkippedDownloads++
					continue
				}
				return fmt.Errorf("backing up asset %d: %w (use --continue-download-on-failure to ignore)", asset.ID, err)
			}
			asset.BackedUpTo = target
			report.BackedUp++
		}

		if report.DeleteConfirmed {
			r.logger.Info("deleting asset", slog.Int64("asset_id", asset.ID))
			if err := r.client.Delete(ctx, fmt.Sprintf("/assets/%d", asset.ID)); err != nil {
				return fmt.Errorf("deleting asset %d: %w", asset.ID, err)
			}
			asset.IsDeleted = true
			report.Deleted++
		} else {
			r.logger.Debug("deletion disabled, asset kept", slog.Int64("asset_id", asset.ID))
		}

		if err := r.persistAssets(ctx, assets); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) persistAssets(ctx context.Context, assets []*model.Asset) error {
	return r.store.Save(ctx, r.opts.SpaceID, store.KindAssets, assets)
}

func decodeAssets(raw []json.RawMessage) ([]*model.Asset, error) {
	assets := make([]*model.Asset, 0, len(raw))
	for _, item := range raw {
		var asset model.Asset
		if err := json.Unmarshal(item, &asset); err != nil {
			return nil, fmt.Errorf("decoding asset record: %w", err)
		}
		assets = append(assets, &asset)
	}
	return assets, nil
}

func decodeFolders(raw []json.RawMessage) ([]model.Folder, error) {
	folders := make([]model.Folder, 0, len(raw))
	for _, item := range raw {
		var folder model.Folder
		if err := json.Unmarshal(item, &folder); err != nil {
			return nil, fmt.Errorf("decoding asset folder record: %w", err)
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// Package store provides tests for the snapshot store.
package store

import (
	"context"
	"testing"

	"github.com/assetsweep/assetsweep/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreLoadMissingDocument(t *testing.T) {
	st := openTestStore(t)

	var assets []*model.Asset
	ok, err := st.Load(context.Background(), "42", KindAssets, &assets)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("expected no snapshot for a fresh store")
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	assets := []*model.Asset{
		{ID: 1, Filename: "https://a.storyblok.com/f/42/one.png", IsInUse: model.UsageInUse},
		{ID: 2, Filename: "https://a.storyblok.com/f/42/two.png", IsInUse: model.UsageNotInUse, ToBeDeleted: true},
		{ID: 3, Filename: "https://a.storyblok.com/f/42/three.png"},
	}

	if err := st.Save(ctx, "42", KindAssets, assets); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var loaded []*model.Asset
	ok, err := st.Load(ctx, "42", KindAssets, &loaded)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the snapshot to exist")
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(loaded))
	}

	// The tri-state classification survives the round trip.
	if loaded[0].IsInUse != model.UsageInUse {
		t.Errorf("asset 1: expected in_use, got %s", loaded[0].IsInUse)
	}
	if loaded[1].IsInUse != model.UsageNotInUse || !loaded[1].ToBeDeleted {
		t.Errorf("asset 2: enrichment state lost: %+v", loaded[1])
	}
	if loaded[2].IsInUse.Known() {
		t.Errorf("asset 3: expected unknown usage, got %s", loaded[2].IsInUse)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, "42", KindAssets, []*model.Asset{{ID: 1}}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := st.Save(ctx, "42", KindAssets, []*model.Asset{{ID: 1, IsDeleted: true}}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	var loaded []*model.Asset
	if _, err := st.Load(ctx, "42", KindAssets, &loaded); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || !loaded[0].IsDeleted {
		t.Errorf("expected the overwritten snapshot, got %+v", loaded)
	}
}

func TestStoreDocumentsAreKeyedBySpaceAndKind(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, "42", KindAssets, []*model.Asset{{ID: 1}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Save(ctx, "42", KindAssetFolders, []model.Folder{{Name: "media"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var assets []*model.Asset
	if ok, _ := st.Load(ctx, "43", KindAssets, &assets); ok {
		t.Error("snapshot leaked across spaces")
	}

	var folders []model.Folder
	ok, err := st.Load(ctx, "42", KindAssetFolders, &folders)
	if err != nil || !ok {
		t.Fatalf("folder snapshot missing: ok=%v err=%v", ok, err)
	}
	if len(folders) != 1 || folders[0].Name != "media" {
		t.Errorf("unexpected folder snapshot: %+v", folders)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := Open(dir, "")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := st.Save(ctx, "42", KindAssets, []*model.Asset{{ID: 7, IsInUse: model.UsageNotInUse}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	st.Close()

	st2, err := Open(dir, "")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer st2.Close()

	var loaded []*model.Asset
	ok, err := st2.Load(ctx, "42", KindAssets, &loaded)
	if err != nil || !ok {
		t.Fatalf("snapshot lost across reopen: ok=%v err=%v", ok, err)
	}
	if loaded[0].ID != 7 || loaded[0].IsInUse != model.UsageNotInUse {
		t.Errorf("unexpected snapshot after reopen: %+v", loaded[0])
	}
}

func TestStoreClear(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	st.Save(ctx, "42", KindAssets, []*model.Asset{{ID: 1}})
	st.Save(ctx, "42", KindAssetFolders, []model.Folder{})
	st.Save(ctx, "99", KindAssets, []*model.Asset{{ID: 2}})

	dropped, err := st.Clear(ctx, "42")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if dropped != 2 {
		t.Errorf("expected 2 dropped snapshots, got %d", dropped)
	}

	var assets []*model.Asset
	if ok, _ := st.Load(ctx, "99", KindAssets, &assets); !ok {
		t.Error("Clear removed another space's snapshot")
	}
}

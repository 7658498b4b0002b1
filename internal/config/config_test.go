package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.Token = "token"
	cfg.SpaceID = "42"
	return cfg
}

func TestValidateAcceptsDefaultsWithCredentials(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Token = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for a missing token")
	}
	if !strings.Contains(err.Error(), EnvToken) {
		t.Errorf("error should point at the env fallback, got: %v", err)
	}
}

func TestValidateRequiresSpaceID(t *testing.T) {
	cfg := validConfig()
	cfg.SpaceID = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for a missing space id")
	}
	if !strings.Contains(err.Error(), EnvSpaceID) {
		t.Errorf("error should point at the env fallback, got: %v", err)
	}
}

func TestValidateRejectsUnknownRegion(t *testing.T) {
	cfg := validConfig()
	cfg.Region = "mars"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for an unknown region")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("error should list the known regions, got: %v", err)
	}
}

func TestValidateRejectsRelativeBlacklistedPath(t *testing.T) {
	cfg := validConfig()
	cfg.BlacklistedPaths = []string{"/fine", "not-global"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for a path without a leading slash")
	}
	if !strings.Contains(err.Error(), "not-global") {
		t.Errorf("error should name the offending path, got: %v", err)
	}
}

func TestMergeFileOverlay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "assetsweep.yaml")
	body := `
space_id: "77"
region: us
blacklisted_paths:
  - /logos
blacklisted_words:
  - logo
`
	if err := os.WriteFile(file, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.SpaceID = "42"
	cfg.BlacklistedPaths = []string{"/mail"}

	if err := cfg.MergeFile(file); err != nil {
		t.Fatalf("MergeFile failed: %v", err)
	}

	if cfg.SpaceID != "77" {
		t.Errorf("expected the file to override the space id, got %q", cfg.SpaceID)
	}
	if cfg.Region != "us" {
		t.Errorf("expected the file to override the region, got %q", cfg.Region)
	}

	// Blacklists accumulate across sources.
	wantPaths := []string{"/mail", "/logos"}
	if len(cfg.BlacklistedPaths) != len(wantPaths) {
		t.Fatalf("expected paths %v, got %v", wantPaths, cfg.BlacklistedPaths)
	}
	for i, path := range wantPaths {
		if cfg.BlacklistedPaths[i] != path {
			t.Errorf("path %d: expected %q, got %q", i, path, cfg.BlacklistedPaths[i])
		}
	}
	if len(cfg.BlacklistedWords) != 1 || cfg.BlacklistedWords[0] != "logo" {
		t.Errorf("expected words [logo], got %v", cfg.BlacklistedWords)
	}
}

func TestMergeFilePolicyKeys(t *testing.T) {
	file := filepath.Join(t.TempDir(), "assetsweep.yaml")
	body := `
delete: true
backup: false
backup_directory: /mnt/backups
cache: false
cache_directory: /mnt/cache
continue_download_on_failure: false
`
	if err := os.WriteFile(file, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.MergeFile(file); err != nil {
		t.Fatalf("MergeFile failed: %v", err)
	}

	if !cfg.Delete {
		t.Error("delete not merged from file")
	}
	// Explicit false must override the true default; only an absent key
	// keeps it.
	if cfg.Backup {
		t.Error("explicit backup: false not merged from file")
	}
	if cfg.UseCache {
		t.Error("explicit cache: false not merged from file")
	}
	if cfg.ContinueDownloadOnFailure {
		t.Error("explicit continue_download_on_failure: false not merged from file")
	}
	if cfg.BackupDir != "/mnt/backups" || cfg.CacheDir != "/mnt/cache" {
		t.Errorf("directories not merged from file: %q, %q", cfg.BackupDir, cfg.CacheDir)
	}
}

func TestMergeFileEmptyValuesKeepExisting(t *testing.T) {
	file := filepath.Join(t.TempDir(), "assetsweep.yaml")
	if err := os.WriteFile(file, []byte("blacklisted_words: [draft]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.SpaceID = "42"

	if err := cfg.MergeFile(file); err != nil {
		t.Fatalf("MergeFile failed: %v", err)
	}
	if cfg.SpaceID != "42" {
		t.Errorf("an absent file value must not clear the existing one, got %q", cfg.SpaceID)
	}
	if cfg.Region != Default().Region {
		t.Errorf("an absent file value must not clear the region, got %q", cfg.Region)
	}
	if !cfg.Backup {
		t.Error("an absent backup key must keep the default")
	}
}

func TestMergeFileMissingFile(t *testing.T) {
	cfg := Default()
	if err := cfg.MergeFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

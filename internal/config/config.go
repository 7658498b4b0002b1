// Package config holds the run configuration surface: flags, environment
// fallbacks, an optional YAML file for policy defaults, and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/assetsweep/assetsweep/internal/storyblok"
)

// Environment variable names honored as flag fallbacks.
const (
	EnvToken      = "STORYBLOK_PERSONAL_ACCESS_TOKEN"
	EnvSpaceID    = "STORYBLOK_SPACE_ID"
	EnvPassphrase = "ASSETSWEEP_PASSPHRASE"
)

// Config is everything a reconciliation run consumes.
type Config struct {
	Token   string
	SpaceID string
	Region  string

	Delete                    bool
	Backup                    bool
	BackupDir                 string
	UseCache                  bool
	CacheDir                  string
	ContinueDownloadOnFailure bool

	BlacklistedPaths []string
	BlacklistedWords []string
}

// Default returns the configuration defaults: backup on, delete off,
// caching on.
func Default() Config {
	return Config{
		Region:                    storyblok.DefaultRegion,
		Backup:                    true,
		BackupDir:                 "assets_backup",
		UseCache:                  true,
		CacheDir:                  "cache",
		ContinueDownloadOnFailure: true,
	}
}

// LoadEnv loads a .env file if one exists and returns the token/space-id
// fallbacks. A missing .env file is not an error.
func LoadEnv() (token, spaceID string) {
	_ = godotenv.Load()
	return os.Getenv(EnvToken), os.Getenv(EnvSpaceID)
}

// Passphrase returns the optional snapshot-store encryption passphrase.
func Passphrase() string {
	return os.Getenv(EnvPassphrase)
}

// fileConfig is the YAML config-file shape. Pointer fields distinguish an
// explicit false/empty value from an absent key, so `backup: false` in a
// file overrides the default without an absent key clearing anything.
type fileConfig struct {
	SpaceID *string `yaml:"space_id"`
	Region  *string `yaml:"region"`

	Delete                    *bool   `yaml:"delete"`
	Backup                    *bool   `yaml:"backup"`
	BackupDir                 *string `yaml:"backup_directory"`
	UseCache                  *bool   `yaml:"cache"`
	CacheDir                  *string `yaml:"cache_directory"`
	ContinueDownloadOnFailure *bool   `yaml:"continue_download_on_failure"`

	BlacklistedPaths []string `yaml:"blacklisted_paths"`
	BlacklistedWords []string `yaml:"blacklisted_words"`
}

// MergeFile overlays settings from a YAML file. Keys absent from the file
// leave the current value alone; lists append to, not replace, the
// flag-provided blacklists.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if file.SpaceID != nil {
		c.SpaceID = *file.SpaceID
	}
	if file.Region != nil {
		c.Region = *file.Region
	}
	if file.Delete != nil {
		c.Delete = *file.Delete
	}
	if file.Backup != nil {
		c.Backup = *file.Backup
	}
	if file.BackupDir != nil {
		c.BackupDir = *file.BackupDir
	}
	if file.UseCache != nil {
		c.UseCache = *file.UseCache
	}
	if file.CacheDir != nil {
		c.CacheDir = *file.CacheDir
	}
	if file.ContinueDownloadOnFailure != nil {
		c.ContinueDownloadOnFailure = *file.ContinueDownloadOnFailure
	}
	c.BlacklistedPaths = append(c.BlacklistedPaths, file.BlacklistedPaths...)
	c.BlacklistedWords = append(c.BlacklistedWords, file.BlacklistedWords...)
	return nil
}

// Validate checks the configuration before the transport is initialized.
func (c Config) Validate() error {
	regions := storyblok.Regions()
	regionValues := make([]interface{}, len(regions))
	for i, region := range regions {
		regionValues[i] = region
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.Token, validation.Required.Error(
			fmt.Sprintf("a personal access token is required (flag --token or env %s)", EnvToken))),
		validation.Field(&c.SpaceID, validation.Required.Error(
			fmt.Sprintf("a space id is required (flag --space-id or env %s)", EnvSpaceID))),
		validation.Field(&c.Region, validation.In(regionValues...).Error(
			"must be one of: "+strings.Join(regions, ", "))),
		validation.Field(&c.BlacklistedPaths, validation.Each(validation.By(globalFolderPath))),
	)
}

// globalFolderPath requires a blacklisted path to be a global Storyblok
// path starting with a slash (ex: /sample/path).
func globalFolderPath(value interface{}) error {
	path, _ := value.(string)
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("invalid blacklisted path %q, expected a global path starting with a slash", path)
	}
	return nil
}

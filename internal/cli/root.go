// Package cli implements the assetsweep command-line interface.
// Destructive actions always require an interactive confirmation unless
// --yes is passed explicitly.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/assetsweep/assetsweep/internal/config"
)

var (
	// Global flags
	verbose bool
	dryRun  bool

	// Run flags, merged into a config.Config before the run starts.
	flagToken      string
	flagSpaceID    string
	flagRegion     string
	flagConfigFile string
	flagDelete     bool
	flagBackup     bool
	flagBackupDir  string
	flagCache      bool
	flagCacheDir   string
	flagContinue   bool
	flagPaths      []string
	flagWords      []string
	flagYes        bool
)

// rootCmd is the base command for assetsweep.
var rootCmd = &cobra.Command{
	Use:   "assetsweep",
	Short: "Find, back up and delete unused Storyblok assets",
	Long: `assetsweep reconciles the asset inventory of a Storyblok space against
actual usage, then safely backs up and deletes assets found unused.

Runs are resumable: fetched collections and per-asset classification are
persisted locally, so an interrupted run picks up where it left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command under the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Report only: no backup, no deletion")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)

	defaults := config.Default()

	runCmd.Flags().StringVar(&flagToken, "token", "", "Storyblok personal access token (env "+config.EnvToken+")")
	runCmd.Flags().StringVar(&flagSpaceID, "space-id", "", "Storyblok space ID (env "+config.EnvSpaceID+")")
	runCmd.Flags().StringVar(&flagRegion, "region", defaults.Region, "Storyblok region")
	runCmd.Flags().StringVar(&flagConfigFile, "config", "", "YAML config file with policy defaults")
	runCmd.Flags().BoolVar(&flagDelete, "delete", false, "Delete eligible assets (default false)")
	runCmd.Flags().BoolVar(&flagBackup, "backup", defaults.Backup, "Back up assets before any deletion")
	runCmd.Flags().StringVar(&flagBackupDir, "backup-directory", defaults.BackupDir, "Backup directory")
	runCmd.Flags().BoolVar(&flagCache, "cache", defaults.UseCache, "Use the local snapshot cache (recommended)")
	runCmd.Flags().StringVar(&flagCacheDir, "cache-directory", defaults.CacheDir, "Cache directory")
	runCmd.Flags().BoolVar(&flagContinue, "continue-download-on-failure", defaults.ContinueDownloadOnFailure,
		"Skip assets whose backup download fails instead of aborting")
	runCmd.Flags().StringArrayVar(&flagPaths, "blacklisted-path", nil, "Folder path to protect (exact match, repeatable)")
	runCmd.Flags().StringArrayVar(&flagWords, "blacklisted-word", nil, "Filename substring to protect (repeatable)")
	runCmd.Flags().BoolVar(&flagYes, "yes", false, "Skip confirmation prompts (dangerous)")

	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheStatusCmd.Flags().StringVar(&flagCacheDir, "cache-directory", defaults.CacheDir, "Cache directory")
	cacheClearCmd.Flags().StringVar(&flagCacheDir, "cache-directory", defaults.CacheDir, "Cache directory")
	cacheClearCmd.Flags().StringVar(&flagSpaceID, "space-id", "", "Space whose snapshots to drop (env "+config.EnvSpaceID+")")
	cacheClearCmd.Flags().BoolVar(&flagYes, "yes", false, "Skip confirmation prompt")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the space and act on unused assets",
	Long: `Fetch (or load from cache) all assets and asset folders, classify each
asset as in-use or not, apply the blacklist policy and print a per-folder
summary. With --backup (default) eligible assets are downloaded first;
with --delete they are then removed from the space after confirmation.

A backup, when requested, always completes before the asset is deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		return RunReconcile(cmd.Context(), cfg, flagYes)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Snapshot cache management commands",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cached collection snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunCacheStatus(cmd.Context(), flagCacheDir)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached snapshots for a space (with confirmation)",
	Long: `Drop the cached asset and folder snapshots for a space.

This discards cached classification results: the next run will re-query
usage for every asset, which is slow on large spaces.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunCacheClear(cmd.Context(), flagCacheDir, flagSpaceID, flagYes)
	},
}

// buildConfig merges the run configuration in precedence order: defaults,
// then environment, then the optional config file, then flags. A flag only
// participates when the user actually set it, so a flag's default value
// never shadows a config-file setting.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	envToken, envSpaceID := config.LoadEnv()
	cfg.Token = envToken
	cfg.SpaceID = envSpaceID

	if flagConfigFile != "" {
		if err := cfg.MergeFile(flagConfigFile); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		cfg.Token = flagToken
	}
	if flags.Changed("space-id") {
		cfg.SpaceID = flagSpaceID
	}
	if flags.Changed("region") {
		cfg.Region = flagRegion
	}
	if flags.Changed("delete") {
		cfg.Delete = flagDelete
	}
	if flags.Changed("backup") {
		cfg.Backup = flagBackup
	}
	if flags.Changed("backup-directory") {
		cfg.BackupDir = flagBackupDir
	}
	if flags.Changed("cache") {
		cfg.UseCache = flagCache
	}
	if flags.Changed("cache-directory") {
		cfg.CacheDir = flagCacheDir
	}
	if flags.Changed("continue-download-on-failure") {
		cfg.ContinueDownloadOnFailure = flagContinue
	}
	cfg.BlacklistedPaths = append(cfg.BlacklistedPaths, flagPaths...)
	cfg.BlacklistedWords = append(cfg.BlacklistedWords, flagWords...)

	if dryRun {
		cfg.Delete = false
		cfg.Backup = false
	}

	return cfg, cfg.Validate()
}

// Package cli: wiring between the cobra commands and the reconciliation
// engine, plus all interactive prompting and table output. The core never
// performs prompts itself; the decision is injected into the run.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/assetsweep/assetsweep/internal/config"
	"github.com/assetsweep/assetsweep/internal/core"
	"github.com/assetsweep/assetsweep/internal/store"
	"github.com/assetsweep/assetsweep/internal/storyblok"
)

// newLogger builds the process logger. --verbose lowers the level to Debug.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ConfirmAction prompts the user for a y/n confirmation.
func ConfirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// pressToContinue pauses until the user acknowledges.
func pressToContinue(prompt string) {
	fmt.Printf("%s Press enter to continue: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	reader.ReadString('\n')
}

// RunReconcile performs the full reconciliation run.
func RunReconcile(ctx context.Context, cfg config.Config, yes bool) error {
	logger := newLogger()

	client, err := storyblok.Configure(storyblok.ClientConfig{
		SpaceID: cfg.SpaceID,
		Token:   cfg.Token,
		Region:  cfg.Region,
	}, logger)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.CacheDir, config.Passphrase())
	if err != nil {
		return err
	}
	defer st.Close()

	sink := core.NewBackupSink(cfg.BackupDir, logger)

	rec := core.NewReconciler(client, st, sink, core.Options{
		SpaceID:                   cfg.SpaceID,
		UseCache:                  cfg.UseCache,
		Backup:                    cfg.Backup,
		Delete:                    cfg.Delete,
		ContinueOnDownloadFailure: cfg.ContinueDownloadOnFailure,
		Blacklist: core.Blacklist{
			Paths: cfg.BlacklistedPaths,
			Words: cfg.BlacklistedWords,
		},
	}, logger)

	confirm := func(report *core.Report) bool {
		printSummary(report)

		if yes {
			return true
		}

		switch {
		case cfg.Delete && cfg.Backup:
			return ConfirmAction("Do you really want to delete the assets after performing the backup?")
		case cfg.Delete:
			return ConfirmAction("Do you really want to delete the assets?")
		case cfg.Backup:
			pressToContinue("Assets will not be deleted but will be backed up.")
			return false
		default:
			pressToContinue("Dry run mode: nothing will be done.")
			return false
		}
	}

	report, err := rec.Run(ctx, confirm)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Assets:      %d (%d not in use, %d eligible)\n", report.TotalAssets, report.NotInUse, report.Eligible)
	fmt.Printf("Classified:  %d this run\n", report.Classified)
	if cfg.Backup {
		fmt.Printf("Backed up:   %d (%d downloads skipped)\n", report.BackedUp, report.SkippedDownloads)
	}
	if report.DeleteConfirmed {
		fmt.Printf("Deleted:     %d\n", report.Deleted)
	} else if cfg.Delete {
		fmt.Println("Deleted:     0 (not confirmed)")
	} else {
		fmt.Println("Deleted:     0 (use --delete to enable deletion)")
	}
	return nil
}

// Summary table column titles; numeric columns are right-justified to the
// title width, the path column left-justified.
var summaryTitles = [3]string{"Not in use", "To be deleted", "Path"}

func printSummary(report *core.Report) {
	fmt.Println("\nSummary of files to be deleted")
	printPadded(summaryTitles[0], summaryTitles[1], summaryTitles[2])
	for _, agg := range report.Aggregates {
		printPadded(strconv.Itoa(agg.NotInUse), strconv.Itoa(agg.ToBeDeleted), agg.Path)
	}
	fmt.Println()
}

func printPadded(notInUse, toBeDeleted, path string) {
	fmt.Printf("%*s | %*s | %s\n",
		len(summaryTitles[0]), notInUse,
		len(summaryTitles[1]), toBeDeleted,
		path,
	)
}

// RunCacheStatus lists the stored snapshots.
func RunCacheStatus(ctx context.Context, cacheDir string) error {
	st, err := store.Open(cacheDir, config.Passphrase())
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.List(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot store: %s\n", st.Path())
	if len(infos) == 0 {
		fmt.Println("No snapshots stored.")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("  space %s  %-14s %8d bytes  updated %s\n",
			info.SpaceID, info.Kind, info.Size, info.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// RunCacheClear drops the snapshots for one space after confirmation.
func RunCacheClear(ctx context.Context, cacheDir, spaceID string, yes bool) error {
	if spaceID == "" {
		_, spaceID = config.LoadEnv()
	}
	if spaceID == "" {
		return fmt.Errorf("a space id is required (flag --space-id or env %s)", config.EnvSpaceID)
	}

	if !yes && !ConfirmAction(fmt.Sprintf(
		"Drop cached snapshots for space %s? The next run will re-classify every asset.", spaceID)) {
		fmt.Println("Aborted.")
		return nil
	}

	st, err := store.Open(cacheDir, config.Passphrase())
	if err != nil {
		return err
	}
	defer st.Close()

	dropped, err := st.Clear(ctx, spaceID)
	if err != nil {
		return err
	}
	fmt.Printf("Dropped %d snapshot(s) for space %s\n", dropped, spaceID)
	return nil
}

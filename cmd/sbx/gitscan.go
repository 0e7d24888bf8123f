package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/gitscan"
)

func newGitScanCmd() *cobra.Command {
	var (
		configPath string
		since      string
	)

	cmd := &cobra.Command{
		Use:   "gitscan <repo>",
		Short: "Scan a watched repository for issue-closing commits",
		Long: `Fetches the repository's bare clone and lists new commits whose message
carries a Fixes: or Task-number: footer, together with the release
version they are expected to ship in. With --since, all branches are
scanned from the given date instead of only moved heads.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGitScan(cmd, configPath, args[0], since)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVar(&since, "since", "", "scan commits since this date (e.g. 2024-05-01)")
	return cmd
}

func runGitScan(cmd *cobra.Command, configPath, name, since string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo := &gitscan.Repository{
		Name:     name,
		RepoBase: cfg.Watch.RepoBase,
		WorkDir:  cfg.Watch.WorkDir,
	}

	lock, err := repo.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	changes, err := repo.NewChanges(ctx, since)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Fprintln(out, "No branch changes.")
		return nil
	}

	total := 0
	for _, change := range changes {
		fixes, err := repo.ParseCommits(ctx, change)
		if err != nil {
			return err
		}
		for _, fix := range fixes {
			total++
			keys := append(append([]string{}, fix.Fixes...), fix.TaskNumbers...)
			version := fix.Version
			if version == "" {
				version = "?"
			}
			fmt.Fprintf(out, "%s %s [%s] %s (%s)\n",
				shortSHA(fix.SHA1), fix.Branch, version, fix.Subject, strings.Join(keys, ", "))
		}
	}

	if total == 0 {
		fmt.Fprintln(out, "No commits with issue footers.")
	}
	return nil
}

// shortSHA returns the first 10 characters of a commit hash.
func shortSHA(sha string) string {
	if len(sha) <= 10 {
		return sha
	}
	return sha[:10]
}

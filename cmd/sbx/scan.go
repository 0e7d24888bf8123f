package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/classify"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/ingest"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/rules"
)

func newScanCmd() *cobra.Command {
	var (
		configPath string
		rulesPath  string
		githubSpec string
		project    string
		branch     string
		platform   string
		buildURL   string
		save       bool
		showAll    bool
	)

	cmd := &cobra.Command{
		Use:   "scan [log file or URL]",
		Short: "Classify one CI build log",
		Long: `Scans a build log against the rule table and prints the diagnosis:
the decisive log excerpt, whether an automatic retry is worthwhile, and
a human-readable summary. The log can be a local file, an HTTP(S) URL
(Jenkins console logs work directly), or a GitHub Actions job given as
--github owner/repo/jobID.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			return runScan(cmd, scanOpts{
				configPath: configPath,
				rulesPath:  rulesPath,
				githubSpec: githubSpec,
				arg:        arg,
				project:    project,
				branch:     branch,
				platform:   platform,
				buildURL:   buildURL,
				save:       save,
				showAll:    showAll,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (overrides config)")
	cmd.Flags().StringVar(&githubSpec, "github", "", "GitHub Actions job as owner/repo/jobID")
	cmd.Flags().StringVar(&project, "project", "", "project the build belongs to")
	cmd.Flags().StringVar(&branch, "branch", "", "branch the build ran on")
	cmd.Flags().StringVar(&platform, "platform", "", "build platform, e.g. linux-g++")
	cmd.Flags().StringVar(&buildURL, "url", "", "link back to the build page")
	cmd.Flags().BoolVar(&save, "save", false, "store the build and its classification")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "show every finding, not just the decisive one")
	return cmd
}

type scanOpts struct {
	configPath string
	rulesPath  string
	githubSpec string
	arg        string
	project    string
	branch     string
	platform   string
	buildURL   string
	save       bool
	showAll    bool
}

func runScan(cmd *cobra.Command, opts scanOpts) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if opts.arg == "" && opts.githubSpec == "" {
		return fmt.Errorf("a log file, URL, or --github spec is required")
	}

	// Config is optional for ad-hoc scans; defaults cover a bare rules
	// file in the working directory.
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if !os.IsNotExist(underlying(err)) || opts.save {
			return err
		}
		cfg, _ = config.Parse([]byte("project: adhoc"))
	}

	rulesPath := opts.rulesPath
	if rulesPath == "" {
		rulesPath = cfg.RulesPath
	}
	rs, err := rules.Load(rulesPath)
	if err != nil {
		return err
	}

	source, err := resolveSource(cmd, opts, cfg)
	if err != nil {
		return err
	}

	rc, err := source.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	meta := classify.Metadata{
		Project:  firstNonEmpty(opts.project, cfg.Project),
		Branch:   opts.branch,
		BuildURL: firstNonEmpty(opts.buildURL, urlOf(source)),
		Platform: opts.platform,
	}

	result, err := classify.Scan(rc, rs, meta)
	if err != nil {
		return err
	}

	printResult(out, source.Description(), result, opts.showAll)

	if opts.save {
		return saveResult(cmd, opts.configPath, meta, result)
	}
	return nil
}

// resolveSource picks the log source from the command arguments.
func resolveSource(cmd *cobra.Command, opts scanOpts, cfg *config.Config) (ingest.Source, error) {
	if opts.githubSpec != "" {
		token := os.Getenv(cfg.GitHub.TokenEnv)
		return ingest.NewGitHubSource(cmd.Context(), opts.githubSpec, token)
	}
	return ingest.Resolve(opts.arg)
}

// urlOf returns the source description when it is already a URL.
func urlOf(source ingest.Source) string {
	if _, ok := source.(*ingest.HTTPSource); ok {
		return source.Description()
	}
	return ""
}

// saveResult stores the build and its classification.
func saveResult(cmd *cobra.Command, configPath string, meta classify.Metadata, result classify.Result) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	build := models.Build{
		Project:   meta.Project,
		Branch:    meta.Branch,
		URL:       meta.BuildURL,
		Platform:  meta.Platform,
		Status:    models.BuildStatusClassified,
		CreatedAt: time.Now(),
	}
	if err := gormDB.Create(&build).Error; err != nil {
		return fmt.Errorf("save build: %w", err)
	}

	ruleName := ""
	if !result.Unclassified() {
		ruleName = result.Decisive.Rule.Name
	}
	cl := models.Classification{
		BuildID:     build.ID,
		RuleName:    ruleName,
		Detail:      result.Detail,
		ShouldRetry: result.ShouldRetry,
		Summary:     result.Summary,
		CreatedAt:   time.Now(),
	}
	if err := gormDB.Create(&cl).Error; err != nil {
		return fmt.Errorf("save classification: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nSaved as build %d.\n", build.ID)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// underlying unwraps one level of error wrapping for os.IsNotExist.
func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}

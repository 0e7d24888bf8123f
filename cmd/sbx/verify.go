package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/fixture"
	"github.com/zulandar/signalbox/internal/rules"
)

func newVerifyCmd() *cobra.Command {
	var (
		configPath  string
		rulesPath   string
		fixturesDir string
		update      bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the rule table against the fixture set",
		Long: `Classifies every sample log in the fixtures directory and compares the
output against its stored expectation (detail, should_retry, summary).
With --update, rewrites the expectation files from current engine
output instead of failing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, configPath, rulesPath, fixturesDir, update)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (overrides config)")
	cmd.Flags().StringVar(&fixturesDir, "fixtures", "", "fixtures directory (overrides config)")
	cmd.Flags().BoolVar(&update, "update", false, "rewrite expectations from engine output")
	return cmd
}

func runVerify(cmd *cobra.Command, configPath, rulesPath, fixturesDir string, update bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(underlying(err)) {
			return err
		}
		cfg, _ = config.Parse([]byte("project: adhoc"))
	}
	if rulesPath == "" {
		rulesPath = cfg.RulesPath
	}
	if fixturesDir == "" {
		fixturesDir = cfg.FixturesDir
	}

	rs, err := rules.Load(rulesPath)
	if err != nil {
		return err
	}

	if update {
		changed, err := fixture.Update(fixturesDir, rs)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			fmt.Fprintln(out, "All expectations already match.")
			return nil
		}
		for _, name := range changed {
			fmt.Fprintf(out, "updated %s\n", name)
		}
		fmt.Fprintf(out, "\nRewrote %d expectation(s).\n", len(changed))
		return nil
	}

	report, err := fixture.Verify(fixturesDir, rs)
	if err != nil {
		return err
	}

	if report.OK() {
		fmt.Fprintf(out, "OK: %d fixture(s) verified.\n", report.Checked)
		return nil
	}

	for _, m := range report.Mismatches {
		fmt.Fprintf(out, "FAIL %s: %s\n", m.Fixture, m.Field)
		fmt.Fprintf(out, "  want: %s\n", indentContinuations(m.Want))
		fmt.Fprintf(out, "  got:  %s\n", indentContinuations(m.Got))
	}
	return fmt.Errorf("%d mismatch(es) across %d fixture(s)", len(report.Mismatches), report.Checked)
}

// indentContinuations keeps multi-line values aligned under their label.
func indentContinuations(s string) string {
	return strings.ReplaceAll(s, "\n", "\n        ")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Rule table management commands",
	}

	cmd.AddCommand(newRulesLintCmd())
	cmd.AddCommand(newRulesListCmd())
	return cmd
}

func newRulesLintCmd() *cobra.Command {
	var (
		configPath string
		rulesPath  string
	)

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check the rules file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesLint(cmd, configPath, rulesPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (overrides config)")
	return cmd
}

func runRulesLint(cmd *cobra.Command, configPath, rulesPath string) error {
	out := cmd.OutOrStdout()

	path, err := resolveRulesPath(configPath, rulesPath)
	if err != nil {
		return err
	}

	problems, err := rules.Lint(path)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintf(out, "%s: no problems found.\n", path)
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(out, "%s: %s\n", path, p)
	}
	return fmt.Errorf("%d problem(s) found", len(problems))
}

func newRulesListCmd() *cobra.Command {
	var (
		configPath string
		rulesPath  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in classification order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(cmd, configPath, rulesPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (overrides config)")
	return cmd
}

func runRulesList(cmd *cobra.Command, configPath, rulesPath string) error {
	out := cmd.OutOrStdout()

	path, err := resolveRulesPath(configPath, rulesPath)
	if err != nil {
		return err
	}
	rs, err := rules.Load(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-28s %8s %6s  %s\n", "NAME", "PRIORITY", "RETRY", "PATTERN")
	width := termWidth()
	for _, r := range rs.Rules {
		fmt.Fprintf(out, "%-28s %8d %6v  %s\n", r.Name, r.Priority, r.ShouldRetry, truncate(r.Pattern.String(), width-46))
	}
	return nil
}

// resolveRulesPath picks the rules file from the flag or the config.
func resolveRulesPath(configPath, rulesPath string) (string, error) {
	if rulesPath != "" {
		return rulesPath, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		if os.IsNotExist(underlying(err)) {
			return "rules.yaml", nil
		}
		return "", err
	}
	return cfg.RulesPath, nil
}

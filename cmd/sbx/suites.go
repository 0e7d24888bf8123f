package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/suiteplan"
)

func newSuitesCmd() *cobra.Command {
	var (
		configPath string
		osName     string
		arch       string
		features   []string
		modules    []string
	)

	cmd := &cobra.Command{
		Use:   "suites",
		Short: "Print the post-build test suites selected for a build profile",
		Long: `Evaluates each suite's predicate against the given build profile and
prints the suites that would run. Without a config file the built-in
plan is used: bic, headers and symbols need process support (bic and
symbols only on Linux), and guiapplauncher also needs the widgets
module.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, configPath, suiteplan.Profile{
				OS:       osName,
				Arch:     arch,
				Features: features,
				Modules:  modules,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().StringVar(&osName, "os", "linux", "target operating system")
	cmd.Flags().StringVar(&arch, "arch", "amd64", "target architecture")
	cmd.Flags().StringSliceVar(&features, "feature", nil, "enabled build features (e.g. process)")
	cmd.Flags().StringSliceVar(&modules, "module", nil, "built modules (e.g. widgets)")
	return cmd
}

func runSuites(cmd *cobra.Command, configPath string, profile suiteplan.Profile) error {
	out := cmd.OutOrStdout()

	specs := config.DefaultSuites()
	if cfg, err := config.Load(configPath); err == nil {
		specs = cfg.Suites
	} else if !os.IsNotExist(underlying(err)) {
		return err
	}

	plan, err := suiteplan.Compile(specs)
	if err != nil {
		return err
	}
	selected, err := plan.Select(profile)
	if err != nil {
		return err
	}

	if len(selected) == 0 {
		fmt.Fprintln(out, "No suites selected for this profile.")
		return nil
	}
	fmt.Fprintln(out, strings.Join(selected, "\n"))
	return nil
}

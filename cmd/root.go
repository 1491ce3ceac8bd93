// Package cmd provides the root command and CLI setup for testforge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"testforge.dev/pkg/testforge/internal/adapter"
	"testforge.dev/pkg/testforge/internal/controller"
	"testforge.dev/pkg/testforge/internal/domain"
	m "testforge.dev/pkg/testforge/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var reportStore adapter.ReportStore
var ui controller.UI
var mapper domain.Mapper
var discoverer domain.Discoverer

// reportsOutputDirFlag is a root-level flag shared by commands that write reports.
var reportsOutputDirFlag string

// excludePatterns filters source files for applicable commands.
var excludePatterns []string

// verboseFlag raises the log level to debug.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies. The LLM client is built per run by
	// the audit command because it needs an API key.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	reportStore = adapter.NewFileReportStore(fsAdapter)
	mapper = domain.NewMapper(fsAdapter, viper.GetInt(parallelConfigKey))
	discoverer = domain.NewDiscoverer(fsAdapter)
}

const rootLongDescription = `Testforge audits the test suite of a Go project and improves it.

It maps the code structure, measures coverage, assertion density, mutation
score, and test clarity, then runs a bounded generate-judge-integrate loop
that adds tests for uncovered or poorly tested units. Every run ends with an
audit report showing the before/after difference.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "testforge",
		Short: "Autonomous test quality auditor for Go projects",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for audit reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", false, "enable debug logging")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// newWorkflow assembles the audit pipeline around the given LLM ports, any of
// which may be nil for read-only passes.
func newWorkflow(generator adapter.Generator, judge adapter.Judge, scorer adapter.ClarityScorer) domain.Workflow {
	assessor := domain.NewAssessor(scorer)
	improver := domain.NewImprover(fsAdapter, generator, judge, discoverer, assessor)
	mutationRunner := adapter.NewExecMutationRunner(
		viper.GetString(mutationCommandKey),
		viper.GetStringSlice(mutationArgsKey),
		mutationTimeout(),
	)

	return domain.NewWorkflow(
		fsAdapter,
		reportStore,
		ui,
		mapper,
		discoverer,
		assessor,
		improver,
		mutationRunner,
	)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// sourceRootArg resolves the positional source path, falling back to config.
func sourceRootArg(args []string) m.Path {
	if len(args) > 0 {
		return m.Path(args[0])
	}

	return m.Path(viper.GetString(sourceRootConfigKey))
}

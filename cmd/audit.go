package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testforge.dev/pkg/testforge/internal/adapter"
	"testforge.dev/pkg/testforge/internal/domain"
	m "testforge.dev/pkg/testforge/internal/model"
)

const auditLongDescription = `Audit the test suite of a Go project.

The audit maps every function, method, and type in the source tree, discovers
the existing tests, and measures quality: line coverage by target resolution,
assertion density, mock usage, clarity, and (when a mutation command is
configured) mutation score. It then iterates: pick the weakest targets,
generate candidate tests, judge them against the quality threshold, integrate
the accepted ones, and re-measure until the metrics stop moving or the
iteration budget runs out.

Pass --no-generate for a measurement-only audit.`

var maxIterationsFlag int
var thresholdFlag float64
var targetsFlag int
var auditParallelFlag int
var noMutationFlag bool
var noGenerateFlag bool
var modelFlag string
var testRootFlag string

// auditCmd represents the audit command.
var auditCmd = newAuditCmd()

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [path]",
		Short: "Audit and improve a project's test suite",
		Long:  auditLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceRoot := sourceRootArg(args)

			testRoot := m.Path(viper.GetString(testRootConfigKey))
			if testRoot == "" {
				testRoot = sourceRoot
			}

			generate := !noGenerateFlag

			var (
				generator adapter.Generator
				judge     adapter.Judge
				scorer    adapter.ClarityScorer
			)

			client, err := newLLMClient(cmd, generate)
			if err != nil {
				return err
			}

			if client != nil {
				generator = client
				judge = client
				scorer = client
			}

			workflow := newWorkflow(generator, judge, scorer)

			_, err = workflow.Audit(cmd.Context(), domain.AuditArgs{
				Project:        string(sourceRoot),
				SourceRoot:     sourceRoot,
				TestRoot:       testRoot,
				ReportsDir:     m.Path(viper.GetString(outputFlagName)),
				Exclude:        viper.GetStringSlice(excludeConfigKey),
				MaxIterations:  viper.GetInt(maxIterationsConfigKey),
				Threshold:      viper.GetFloat64(thresholdConfigKey),
				TargetCap:      viper.GetInt(targetsConfigKey),
				Workers:        viper.GetInt(parallelConfigKey),
				EnableMutation: !noMutationFlag,
				GenerateTests:  generate,
			})

			return err
		},
	}

	configureAuditFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func configureAuditFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&maxIterationsFlag, maxIterationsFlagName, "i", viper.GetInt(maxIterationsConfigKey), "maximum improvement iterations")
	bindFlagToConfig(cmd.Flags().Lookup(maxIterationsFlagName), maxIterationsConfigKey)

	cmd.Flags().Float64VarP(&thresholdFlag, thresholdFlagName, "t", viper.GetFloat64(thresholdConfigKey), "acceptance threshold for judged candidates (0-10)")
	bindFlagToConfig(cmd.Flags().Lookup(thresholdFlagName), thresholdConfigKey)

	cmd.Flags().IntVar(&targetsFlag, targetsFlagName, viper.GetInt(targetsConfigKey), "maximum targets per iteration")
	bindFlagToConfig(cmd.Flags().Lookup(targetsFlagName), targetsConfigKey)

	cmd.Flags().IntVarP(&auditParallelFlag, parallelFlagName, "p", viper.GetInt(parallelConfigKey), "number of parallel generation workers")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), parallelConfigKey)

	cmd.Flags().StringVar(&modelFlag, modelFlagName, viper.GetString(llmModelConfigKey), "LLM model used for generation and judging")
	bindFlagToConfig(cmd.Flags().Lookup(modelFlagName), llmModelConfigKey)

	cmd.Flags().StringVar(&testRootFlag, "tests", viper.GetString(testRootConfigKey), "test tree root (defaults to the source path)")
	bindFlagToConfig(cmd.Flags().Lookup("tests"), testRootConfigKey)

	cmd.Flags().BoolVar(&noMutationFlag, noMutationFlagName, false, "skip mutation testing")
	cmd.Flags().BoolVar(&noGenerateFlag, noGenerateFlagName, false, "measure only, do not generate tests")
}

// newLLMClient builds the Gemini client when the run needs one. Clarity
// scoring also wants a client, so a measurement-only audit still gets one if
// a key is configured; only a hard requirement surfaces a missing key.
func newLLMClient(cmd *cobra.Command, required bool) (*adapter.GeminiClient, error) {
	apiKey := viper.GetString(llmAPIKeyConfigKey)
	if apiKey == "" {
		if required {
			return nil, &m.ConfigError{Field: llmAPIKeyConfigKey, Reason: "required to generate tests (set TESTFORGE_LLM_API_KEY)"}
		}

		return nil, nil
	}

	return adapter.NewGeminiClient(cmd.Context(), apiKey, viper.GetString(llmModelConfigKey))
}

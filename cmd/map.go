package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testforge.dev/pkg/testforge/internal/domain"
	m "testforge.dev/pkg/testforge/internal/model"
)

// mapCmd represents the map command.
var mapCmd = newMapCmd()

func newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map [path]",
		Short: "Map the code structure without auditing",
		Long: `Parse the source tree and print every discovered function, method, and
type with its complexity and coverage status. No tests are generated and no
report is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceRoot := sourceRootArg(args)

			testRoot := m.Path(viper.GetString(testRootConfigKey))
			if testRoot == "" {
				testRoot = sourceRoot
			}

			workflow := newWorkflow(nil, nil, nil)

			return workflow.MapStructure(cmd.Context(), domain.MapArgs{
				SourceRoot: sourceRoot,
				TestRoot:   testRoot,
				Exclude:    viper.GetStringSlice(excludeConfigKey),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(mapCmd)
}

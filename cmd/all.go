// shogun all
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qobs-build/shogun/internal/builder"
	"github.com/qobs-build/shogun/internal/msg"
)

func newAllCommand(opts *globalOptions) *cobra.Command {
	var (
		all      builder.AllOptions
		buildDir string
	)

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Generate the ninja files of every variant",
		Long:  `Generate the ninja files of every variant. Each is written under its default name into --outdir.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.newBuilder(buildDir)
			if err != nil {
				return err
			}
			return b.BuildAll(all, msg.Default().W)
		},
	}

	cmd.Flags().StringVarP(&all.Sources, "sources", "i", "", "List of source files")
	cmd.Flags().StringVarP(&all.Generated, "generated", "g", "", "List of generated files")
	cmd.MarkFlagRequired("sources")
	cmd.MarkFlagRequired("generated")
	cmd.Flags().StringVarP(&all.OutDir, "outdir", "O", ".", "Directory to write the ninja files into")
	cmd.Flags().StringVarP(&buildDir, "builddir", "B", ".", "Build directory")
	cmd.Flags().BoolVar(&all.Diff, "diff", false, "Show how the existing ninja files differ instead of writing them")

	return cmd
}

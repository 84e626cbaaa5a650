// shogun ProtoText|TFCoreProto|TFFrame|TFLibAndroid
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qobs-build/shogun/internal/builder"
	"github.com/qobs-build/shogun/internal/msg"
)

func newVariantCommand(v builder.Variant, opts *globalOptions) *cobra.Command {
	var (
		build    builder.Options
		buildDir string
	)

	cmd := &cobra.Command{
		Use:     v.Name,
		Aliases: v.Aliases,
		Short:   v.Short,
		Long:    v.Short + ".\n\nThe final artifact is " + v.Artifact + ".",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.newBuilder(buildDir)
			if err != nil {
				return err
			}
			return b.Build(v, build, msg.Default())
		},
	}

	if v.NeedsSources() {
		cmd.Flags().StringVarP(&build.Sources, "sources", "i", "", "List of source files")
		cmd.MarkFlagRequired("sources")
	}
	if v.NeedsGenerated() {
		cmd.Flags().StringVarP(&build.Generated, "generated", "g", "", "List of generated files")
		cmd.MarkFlagRequired("generated")
	}
	cmd.Flags().StringVarP(&build.Output, "output", "o", v.DefaultOutput, `Where to write the ninja file, "-" for stdout`)
	cmd.Flags().StringVarP(&buildDir, "builddir", "B", ".", "Build directory")
	cmd.Flags().BoolVar(&build.Diff, "diff", false, "Show how the existing ninja file differs instead of writing it")

	return cmd
}

// shogun <variant> -i sources.txt -g generated.txt
package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qobs-build/shogun/internal/builder"
	"github.com/qobs-build/shogun/internal/msg"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	config  string
	profile string
	color   EnumValue
}

func newGlobalOptions() *globalOptions {
	return &globalOptions{
		color: NewEnumValue("auto", map[string]string{
			"auto":   "Color diagnostics when stderr is a terminal",
			"always": "Always color diagnostics",
			"never":  "Never color diagnostics",
		}),
	}
}

func (o *globalOptions) newBuilder(buildDir string) (*builder.Builder, error) {
	return builder.NewBuilder(o.config, o.profile, buildDir, ".")
}

func variantNames() string {
	names := make([]string, len(builder.Variants))
	for i, v := range builder.Variants {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}

// NewRootCommand creates the shogun command tree.
func NewRootCommand() *cobra.Command {
	opts := newGlobalOptions()

	cmd := &cobra.Command{
		Use:   "shogun <variant>",
		Short: "Generate ninja build files from bazel dependency dumps",
		Long: `Generate ninja build files from bazel dependency dumps.

Each subcommand reads the source and/or generated file lists dumped by
bazel query and writes one build file. Variants, in dependency order:
  ` + variantNames(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.color.Value() {
			case "always":
				color.NoColor = false
			case "never":
				color.NoColor = true
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("you must specify one of the following subcommands: %s", variantNames())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "TOML file overriding toolchain, profiles and exclusions")
	cmd.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "release", "Generate with the given profile")
	cmd.PersistentFlags().Var(&opts.color, "color", "Colored diagnostics, one of "+opts.color.HelpString())
	cmd.RegisterFlagCompletionFunc("color", opts.color.CompletionFunc())

	for _, v := range builder.Variants {
		cmd.AddCommand(newVariantCommand(v, opts))
	}
	cmd.AddCommand(newAllCommand(opts))

	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		msg.Fatal("%v", err)
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "config [num_workers queue_size quanta...]",
		Short: "Print the effective run configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, opts, args)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	f.register(cmd)
	return cmd
}

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configKeys lists the settings read from the config file.
var configKeys = []string{"annotation", "assembly", "precedence", "workers", "max-variants", "db", "cache-dir"}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage regionmap configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.regionmap.yaml.",
		Example: `  regionmap config                                  # show all config
  regionmap config set annotation ~/refseq/genomic.gff.gz  # default annotation
  regionmap config set workers 4                     # classify 4 chromosomes at a time
  regionmap config get precedence                    # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func runConfigShow(stdout io.Writer) error {
	settings := make(map[string]any)
	for _, key := range configKeys {
		if viper.IsSet(key) {
			settings[key] = viper.Get(key)
		}
	}
	if len(settings) == 0 {
		fmt.Fprintln(stdout, "# No configuration set. Config file: ~/.regionmap.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(stdout, string(out))
	return nil
}

func runConfigSet(stdout io.Writer, key, value string) error {
	if !knownConfigKey(key) {
		return usageErrorf("unknown config key %q (known: %v)", key, configKeys)
	}

	// Store integer settings as numbers
	switch key {
	case "workers", "max-variants":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return usageErrorf("%s must be a non-negative integer, got %q", key, value)
		}
		viper.Set(key, n)
	default:
		viper.Set(key, value)
	}

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		cfgFile, err = defaultConfigPath()
		if err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(stdout, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(stdout io.Writer, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(stdout, val)
	return nil
}

func knownConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

package options

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"energylogger/pkg/runtime/constant"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

type BaseOptions struct {
	ConfigFile string               `json:"-"`
	Logging    LoggingConfiguration `json:"logging"`
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.addConfigFile(fs)
	bo.addLogging(fs)
	addHelpAndUsage(cmd, fs)
	addDefaultConfig(fs)
}

func (bo *BaseOptions) addConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, "config", "c", bo.ConfigFile, "The program will load its initial configuration from this file. Relative paths start at the current working directory. Command-line flags override configuration from this file.")
}

func (bo *BaseOptions) addLogging(fs *pflag.FlagSet) {
	bo.Logging.BindLoggingFlags(fs)
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

// HelpRequested prints the help of cmd when --help was given.
func HelpRequested(cmd *cobra.Command, fs *pflag.FlagSet) bool {
	help, err := fs.GetBool("help")
	if err != nil {
		klog.InfoS(`"help" flag is non-bool, programmer error, please correct`)
		return false
	}
	if help {
		_ = cmd.Help()
	}
	return help
}

func addDefaultConfig(fs *pflag.FlagSet) {
	fs.Bool("default-config", false, "Print the default configuration for reference and exit.")
}

// DefaultConfigRequested writes config as YAML to w when --default-config
// was given.
func DefaultConfigRequested(config interface{}, fs *pflag.FlagSet, w io.Writer) (bool, error) {
	defaultConfig, err := fs.GetBool("default-config")
	if err != nil || !defaultConfig {
		return false, nil
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return true, err
	}
	_, _ = fmt.Fprintln(w, "# Default configuration. Every field can be set from the configuration file given with --config.")
	_, _ = fmt.Fprintf(w, "\n%v\n", string(data))
	return true, nil
}

func addHelpAndUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.BoolP("help", "h", false, fmt.Sprintf("help for %s", cmd.Name()))

	// cobra's default UsageFunc and HelpFunc pollute the flagset with global flags
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})

	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// flagPrecedence parses args again so flags win over the config file.
func flagPrecedence(o Optioner, args []string) error {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o.AddFlags(fs)
	o.GetBaseOptions().addConfigFile(fs)
	o.GetBaseOptions().addLogging(fs)
	fs.BoolP("help", "h", false, "")
	fs.Bool("default-config", false, "")
	return fs.Parse(args)
}

// ParseAndApplyConfigFile loads the config file named by --config into o, then
// re-applies args on top. Errors wrap constant.ErrConfig.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	if len(o.GetBaseOptions().ConfigFile) == 0 {
		return nil
	}
	if err := parseConfigFile(o); err != nil {
		return fmt.Errorf("%w: %w", constant.ErrConfig, err)
	}
	if err := flagPrecedence(o, args); err != nil {
		return fmt.Errorf("%w: %w", constant.ErrConfig, err)
	}
	return nil
}

func parseConfigFile(out Optioner) error {
	configFilePath, err := filepath.Abs(out.GetBaseOptions().ConfigFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return fmt.Errorf("config file %s: %w", configFilePath, err)
	}
	return nil
}

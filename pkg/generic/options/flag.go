package options

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"os"
	"path/filepath"
	"sigs.k8s.io/yaml"
)

// EnvConfigFile names the option file when --config is not given.
const EnvConfigFile = "TAGSCAN_CONFIG"

type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

// PathResolver is implemented by options that hold file paths. Relative paths read
// from an option file are resolved against the directory of that file.
type PathResolver interface {
	ResolvePaths(dir string)
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
	bo.Logging.BindLoggingFlags(fs)
	addHelpAndUsage(cmd, fs)
	fs.Bool("default-config", false, "Print the default option file and exit")
}

func (bo *BaseOptions) addConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, "config", "c", bo.ConfigFile,
		fmt.Sprintf("Option file in YAML or JSON. Defaults to $%s. Relative paths inside the file are resolved against its directory, command-line flags override its values.", EnvConfigFile))
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

// HandleInfoFlags prints the help or the default option file when requested and reports whether it did.
func HandleInfoFlags(cmd *cobra.Command, fs *pflag.FlagSet, defaults interface{}) (bool, error) {
	if help, err := fs.GetBool("help"); err != nil {
		return false, errors.Wrap(err, "help flag")
	} else if help {
		return true, cmd.Help()
	}
	if printDefaults, err := fs.GetBool("default-config"); err != nil {
		return false, errors.Wrap(err, "default-config flag")
	} else if printDefaults {
		return true, printDefaultConfig(cmd, defaults)
	}
	return false, nil
}

func printDefaultConfig(cmd *cobra.Command, defaults interface{}) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal default config to yaml")
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s option file with every key at its default value.\n# Pass it with --config or $%s.\n\n%s", cmd.Name(), EnvConfigFile, data)
	return err
}

func addHelpAndUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.BoolP("help", "h", false, fmt.Sprintf("help for %s", cmd.Name()))

	// cobra's default usage and help funcs would add its global flags to fs
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// ParseAndApplyConfigFile loads the option file named by --config or $TAGSCAN_CONFIG into o
// and then re-applies args so command-line flags take precedence.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	bo := o.GetBaseOptions()
	if len(bo.ConfigFile) == 0 {
		bo.ConfigFile = os.Getenv(EnvConfigFile)
	}
	if len(bo.ConfigFile) == 0 {
		return nil
	}

	path, err := filepath.Abs(bo.ConfigFile)
	if err != nil {
		return errors.Wrapf(err, "config file %s", bo.ConfigFile)
	}
	if err := parseConfigFile(o, path); err != nil {
		return err
	}
	if r, ok := o.(PathResolver); ok {
		r.ResolvePaths(filepath.Dir(path))
	}
	return reapplyFlags(o, args)
}

func reapplyFlags(o Optioner, args []string) error {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	o.AddFlags(fs)
	o.GetBaseOptions().addConfigFile(fs)
	o.GetBaseOptions().Logging.BindLoggingFlags(fs)
	return fs.Parse(args)
}

// parseConfigFile rejects unknown keys so a misspelled key never falls back to its default.
func parseConfigFile(out Optioner, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		klog.ErrorS(err, "Failed to read config file", "file", path)
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		klog.ErrorS(err, "Failed to unmarshal config file", "file", path)
		return errors.Wrapf(err, "unmarshal config file %s", path)
	}
	klog.V(2).InfoS("Loaded config file", "file", path)
	return nil
}

// ResolvePath joins a relative path to dir. Empty and absolute paths are returned unchanged.
func ResolvePath(dir, path string) string {
	if len(path) == 0 || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

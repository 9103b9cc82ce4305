package options

import (
	"encoding/json"
	"fmt"
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
	"strings"
)

const (
	DefaultLogFormat    = "text"
	DefaultLogVerbosity = 2
	// MaxLogVerbosity is the most detailed level tagscan logs at. Every read is traced at 4.
	MaxLogVerbosity = 5
)

// visibleLoggingFlags are the component-base flags tagscan documents. The rest stay usable but hidden.
var visibleLoggingFlags = sets.NewString("v", "vmodule", "logging-format")

// LoggingConfiguration is the "logging" section of the option file and the matching flags.
type LoggingConfiguration struct {
	config.LoggingConfiguration
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{
		config.LoggingConfiguration{
			Format:    DefaultLogFormat,
			Verbosity: DefaultLogVerbosity,
		},
	}
}

func permittedFormats() string {
	return fmt.Sprintf(`"%s"`, strings.Join(registry.LogRegistry.List(), `", "`))
}

// Validate rejects formats no log backend is registered for and verbosities above MaxLogVerbosity.
func (l *LoggingConfiguration) Validate() error {
	if !sets.NewString(registry.LogRegistry.List()...).Has(l.Format) {
		return fmt.Errorf("unsupported logging format %q, permitted formats: %s", l.Format, permittedFormats())
	}
	if l.Verbosity > MaxLogVerbosity {
		return fmt.Errorf("logging verbosity %d exceeds %d", l.Verbosity, MaxLogVerbosity)
	}
	return nil
}

func (l *LoggingConfiguration) ValidateAndApply() error {
	if err := l.Validate(); err != nil {
		return err
	}
	o := logs.NewOptions()
	o.Config.Format = l.Format
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	return o.ValidateAndApply()
}

type loggingFile struct {
	Format    string                      `json:"format"`
	Verbosity config.VerbosityLevel       `json:"verbosity"`
	VModule   config.VModuleConfiguration `json:"vmodule,omitempty"`
}

func (l *LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(&loggingFile{
		Format:    l.Format,
		Verbosity: l.Verbosity,
		VModule:   l.VModule,
	})
}

// UnmarshalJSON keeps the current value of every key the file leaves out.
func (l *LoggingConfiguration) UnmarshalJSON(bytes []byte) error {
	in := &loggingFile{
		Format:    l.Format,
		Verbosity: l.Verbosity,
		VModule:   l.VModule,
	}
	if err := json.Unmarshal(bytes, in); err != nil {
		return err
	}
	l.Format = in.Format
	l.Verbosity = in.Verbosity
	l.VModule = in.VModule
	return nil
}

// BindLoggingFlags adds -v, --vmodule and --logging-format to fs.
func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	logsFs := pflag.NewFlagSet("", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if !visibleLoggingFlags.Has(f.Name) {
			f.Hidden = true
			return
		}
		if f.Name == "logging-format" {
			f.Usage = fmt.Sprintf("Sets the log format. Permitted formats: %s.", permittedFormats())
		}
	})
	fs.AddFlagSet(logsFs)
}

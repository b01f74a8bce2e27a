package metadata

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Smeilz/dataset/pkg/conf"
	"github.com/Smeilz/dataset/pkg/utils/errutil"
)

// Exit codes, following sysexits conventions.
const (
	ExUsage    = 64
	ExSoftware = 70
	ExIOErr    = 74
)

var (
	// Flag names include a dash to exclude them from dumping.
	dumpConfigFlag      = conf.NewBoolFlag("config-dump", "Dump configuration as environment script.", false)
	dumpConfigRunIDFlag = conf.NewStringFlag("config-dump-run-id", "Dump the configuration recorded for the given run id.", "")
)

// Configure handles configuration parsing, generation and restoration
// based on the config-* flags. Returns true when the log level leaves the
// terminal quiet enough for progress bars. Exits if configuration
// generation was requested or the flags cannot be parsed.
func Configure() bool {
	err := conf.ParseFlags()
	if err != nil {
		logrus.Errorf("Cannot parse flags: %q", err.Error())
		os.Exit(ExUsage)
	}
	logrus.SetLevel(conf.LogLevel())

	if dumpConfigFlag.Value() {
		previousRunID := dumpConfigRunIDFlag.Value()
		if previousRunID != "" {
			backend, err := NewDefault(previousRunID)
			errutil.Check(err)
			flags, err := backend.GetByKind(TypeFlags)
			errutil.Check(err)
			fmt.Println(conf.DumpConfigMap(flags))
		} else {
			fmt.Println(conf.DumpConfig())
		}
		os.Exit(0)
	}

	return conf.LogLevel() <= logrus.ErrorLevel
}

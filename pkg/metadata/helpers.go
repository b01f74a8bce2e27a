package metadata

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Smeilz/dataset/pkg/conf"
)

// RecordRuntimeEnv stores the runtime environment of a run: the full flag
// based configuration, the DATASET_ environment variables and the host
// plus start time.
func RecordRuntimeEnv(metadata Metadata, runStart time.Time) error {
	if err := recordFlags(metadata); err != nil {
		return err
	}

	if err := recordEnv(metadata, conf.EnvironmentPrefix); err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return errors.Wrap(err, "cannot retrieve hostname")
	}

	return metadata.RecordMap(map[string]string{
		"time": runStart.Format(time.RFC822Z),
		"host": hostname,
	}, TypeEmpty)
}

// recordFlags saves the whole flag based configuration.
func recordFlags(metadata Metadata) error {
	return metadata.RecordMap(conf.GetFlags(), TypeFlags)
}

// recordEnv saves all environment variables that start with the prefix.
func recordEnv(metadata Metadata, prefix string) error {
	envMetadata := map[string]string{}
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, prefix) {
			fields := strings.SplitN(env, "=", 2)
			envMetadata[fields[0]] = fields[1]
		}
	}
	if len(envMetadata) == 0 {
		return nil
	}
	return metadata.RecordMap(envMetadata, TypeEnviron)
}

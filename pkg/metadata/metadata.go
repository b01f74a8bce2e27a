// Package metadata persists run metadata: the flag based configuration,
// environment variables, run parameters and final scores, keyed by run id
// and grouped by kind. Cassandra and InfluxDB backends are supported,
// selected with the metadata_db flag.
package metadata

import (
	"github.com/pkg/errors"

	"github.com/Smeilz/dataset/pkg/conf"
)

// Predefined kinds of metadata. A kind groups records with common
// characteristics: TypeFlags holds the flag based configuration,
// TypeEnviron the DATASET_ environment variables, TypeParams the
// parameters a program derived from them and TypeResults the final
// scores. A kind is just a string and each program can define its own.
const (
	TypeEmpty   = ""
	TypeFlags   = "flags"
	TypeEnviron = "environ"
	TypeParams  = "params"
	TypeResults = "results"
)

// Metadata defines the methods a backend must support.
type Metadata interface {
	// Record stores a key and value and associates them with the run id.
	Record(key string, value string, kind string) error
	// RecordMap stores a key and value map and associates it with the run id.
	RecordMap(metadata map[string]string, kind string) error
	// GetByKind retrieves the single metadata map of the given kind.
	// Returns an error if none or more than one is found.
	GetByKind(kind string) (map[string]string, error)
	// Clear deletes all metadata entries associated with the run id.
	Clear() error
}

// NewDefault initializes the backend selected by the metadata_db flag.
func NewDefault(runID string) (Metadata, error) {
	switch backend := conf.MetadataDB.Value(); backend {
	case "cassandra":
		return NewCassandra(runID, DefaultCassandraConfig())
	case "influxdb":
		return NewInfluxDB(runID, DefaultInfluxDBConfig())
	default:
		return nil, errors.Errorf("unsupported metadata backend %q", backend)
	}
}

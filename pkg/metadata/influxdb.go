package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb/client/v2"
	"github.com/pkg/errors"

	"github.com/Smeilz/dataset/pkg/conf"
)

const influxMetadata = "metadata"

// InfluxDBConfig holds the connection settings for InfluxDB.
type InfluxDBConfig struct {
	httpConfig     client.HTTPConfig
	dbName         string
	createDatabase bool
}

// InfluxDB keeps the client alive, holds the active configuration and
// the run id to tag the metadata with.
type InfluxDB struct {
	runID   string
	session client.Client
	config  InfluxDBConfig
}

// DefaultInfluxDBConfig applies the InfluxDB settings from the command
// line flags and environment variables.
func DefaultInfluxDBConfig() InfluxDBConfig {
	return InfluxDBConfig{
		dbName:         conf.InfluxDBName.Value(),
		createDatabase: conf.InfluxDBCreateDatabase.Value(),
		httpConfig: client.HTTPConfig{
			Addr:               fmt.Sprintf("http://%s:%d", conf.InfluxDBAddress.Value(), conf.InfluxDBPort.Value()),
			Username:           conf.InfluxDBUsername.Value(),
			Password:           conf.InfluxDBPassword.Value(),
			InsecureSkipVerify: conf.InfluxDBInsecureSkipVerify.Value(),
		},
	}
}

// NewInfluxDB connects to the database and returns the Metadata helper
// bound to the given run id.
func NewInfluxDB(runID string, config InfluxDBConfig) (Metadata, error) {
	metadata := &InfluxDB{
		runID:  runID,
		config: config,
	}

	session, err := client.NewHTTPClient(config.httpConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create influx client for run %s", runID)
	}
	metadata.session = session

	if config.createDatabase {
		response, err := session.Query(client.Query{
			Command: fmt.Sprintf("CREATE DATABASE %s", config.dbName),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot create influx database for run %s", runID)
		}
		if response.Error() != nil {
			return nil, errors.Wrapf(response.Error(), "cannot create influx database for run %s", runID)
		}
	}

	return metadata, nil
}

// storeMap writes the metadata map as a single point tagged with the run
// id and kind.
func (m *InfluxDB) storeMap(metadata map[string]string, kind string) error {
	batchPoints, err := client.NewBatchPoints(client.BatchPointsConfig{Database: m.config.dbName})
	if err != nil {
		return errors.Wrapf(err, "cannot create batch points for metadata kind %q", kind)
	}

	tags := map[string]string{"kind": kind, "run_id": m.runID}

	fields := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		fields[key] = value
	}

	point, err := client.NewPoint(influxMetadata, tags, fields, time.Now())
	if err != nil {
		return errors.Wrapf(err, "cannot create point for metadata kind %q", kind)
	}
	batchPoints.AddPoint(point)

	return errors.Wrapf(m.session.Write(batchPoints), "cannot publish metadata of kind %q", kind)
}

// Record stores a key and value and associates them with the run id.
func (m *InfluxDB) Record(key, value, kind string) error {
	return m.storeMap(map[string]string{key: value}, kind)
}

// RecordMap stores a key and value map and associates it with the run id.
func (m *InfluxDB) RecordMap(metadata map[string]string, kind string) error {
	return m.storeMap(metadata, kind)
}

// GetByKind retrieves the single metadata map of the given kind. When the
// same kind was recorded more than once the latest values win.
func (m *InfluxDB) GetByKind(kind string) (map[string]string, error) {
	metadata := make(map[string]string)

	// The two tags are shed by grouping on them.
	cmd := fmt.Sprintf("SELECT last(*) FROM %s WHERE run_id='%s' AND kind='%s' GROUP BY run_id,kind", influxMetadata, m.runID, kind)

	response, err := m.session.Query(client.Query{
		Command:  cmd,
		Database: m.config.dbName,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot query metadata for run %s", m.runID)
	}
	if response.Error() != nil {
		return nil, errors.Wrapf(response.Error(), "metadata query failed for run %s", m.runID)
	}

	for _, result := range response.Results {
		for _, row := range result.Series {
			for _, value := range row.Values {
				for idx, cell := range value {
					// Index 0 holds the timestamp and the results may be
					// sparse, skip both.
					if cell != nil && idx != 0 {
						column := strings.Replace(row.Columns[idx], "last_", "", 1)
						metadata[column] = cell.(string)
					}
				}
			}
		}
	}

	if len(metadata) == 0 {
		return nil, errors.Errorf("cannot retrieve metadata for run id %q and kind %q", m.runID, kind)
	}

	return metadata, nil
}

// Clear deletes all metadata entries associated with the run id.
func (m *InfluxDB) Clear() error {
	cmd := fmt.Sprintf("DROP SERIES FROM %s WHERE run_id ='%s'", influxMetadata, m.runID)

	response, err := m.session.Query(client.Query{
		Command:  cmd,
		Database: m.config.dbName,
	})
	if err != nil {
		return errors.Wrapf(err, "cannot clear metadata for run %s", m.runID)
	}
	if response.Error() != nil {
		return errors.Wrapf(response.Error(), "metadata clear failed for run %s", m.runID)
	}
	return nil
}

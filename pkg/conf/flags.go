package conf

// MetadataDB represents metadata database backend flag.
var MetadataDB = NewStringFlag("metadata_db", "Backend used for run metadata. Supported backends: cassandra, influxdb", "cassandra")

// Cassandra backend flags.
var (
	// CassandraAddress represents cassandra address flag.
	CassandraAddress = NewStringFlag("cassandra_addr", "Address of Cassandra DB endpoint", "127.0.0.1")
	// CassandraPort represents cassandra port flag.
	CassandraPort = NewIntFlag("cassandra_port", "Port of Cassandra DB endpoint", 9042)
	// CassandraUsername holds the user name which will be presented when connecting to the cluster.
	CassandraUsername = NewStringFlag("cassandra_username", "The user name which will be presented when connecting to the cluster", "")
	// CassandraPassword holds the password which will be presented when connecting to the cluster.
	CassandraPassword = NewStringFlag("cassandra_password", "The password which will be presented when connecting to the cluster", "")
	// CassandraConnectionTimeout encodes the initial connection timeout in seconds.
	CassandraConnectionTimeout = NewIntFlag("cassandra_connection_timeout", "Initial connection timeout in seconds", 0)
	// CassandraTimeout encodes the query timeout in seconds.
	CassandraTimeout = NewIntFlag("cassandra_timeout", "Query timeout in seconds", 0)
	// CassandraCreateKeyspace determines if an attempt will be made to create the keyspace on connect.
	CassandraCreateKeyspace = NewBoolFlag("cassandra_create_keyspace", "Create the keyspace when connecting, if it does not exist yet", true)
	// CassandraIgnorePeerAddr determines if updates to the node list will be ignored.
	CassandraIgnorePeerAddr = NewBoolFlag("cassandra_ignore_peer_addr", "Ignore updates to the peer node list", false)
	// CassandraInitialHostLookup determines if a lookup of the hosts will happen on connect.
	CassandraInitialHostLookup = NewBoolFlag("cassandra_initial_host_lookup", "Lookup the cluster topology when connecting", true)
	// CassandraKeyspaceName holds the keyspace metadata will be written to.
	CassandraKeyspaceName = NewStringFlag("cassandra_keyspace_name", "Keyspace used to store metadata", "dataset")
	// CassandraSslEnabled determines if an SSL connection attempt will be made.
	CassandraSslEnabled = NewBoolFlag("cassandra_ssl", "Enable SSL when connecting to the cluster", false)
	// CassandraSslHostValidation determines if the server certificate chain and the host name will be verified.
	CassandraSslHostValidation = NewBoolFlag("cassandra_ssl_host_validation", "Verify the certificate chain and host name of the cluster", false)
	// CassandraSslCAPath points a file with the certificate authorities.
	CassandraSslCAPath = NewStringFlag("cassandra_ssl_ca_path", "Path to the CA certificate file", "")
	// CassandraSslCertPath points a file with the client certificate.
	CassandraSslCertPath = NewStringFlag("cassandra_ssl_cert_path", "Path to the client certificate file", "")
	// CassandraSslKeyPath points a file with the client key.
	CassandraSslKeyPath = NewStringFlag("cassandra_ssl_key_path", "Path to the client key file", "")
)

// InfluxDB backend flags.
var (
	// InfluxDBAddress represents influxdb address flag.
	InfluxDBAddress = NewStringFlag("influxdb_addr", "Address of InfluxDB DB endpoint", "127.0.0.1")
	// InfluxDBPort represents influxdb port flag.
	InfluxDBPort = NewIntFlag("influxdb_port", "Port of InfluxDB DB endpoint", 8086)
	// InfluxDBUsername holds the user name which will be presented when connecting to the database.
	InfluxDBUsername = NewStringFlag("influxdb_username", "The user name which will be presented when connecting to the database", "")
	// InfluxDBPassword holds the password which will be presented when connecting to the database.
	InfluxDBPassword = NewStringFlag("influxdb_password", "The password which will be presented when connecting to the database", "")
	// InfluxDBName holds the database metadata will be written to.
	InfluxDBName = NewStringFlag("influxdb_name", "Database used to store metadata", "dataset")
	// InfluxDBCreateDatabase determines if an attempt will be made to create the database on connect.
	InfluxDBCreateDatabase = NewBoolFlag("influxdb_create_database", "Create the database when connecting, if it does not exist yet", true)
	// InfluxDBInsecureSkipVerify determines if the server certificate chain will be verified.
	InfluxDBInsecureSkipVerify = NewBoolFlag("influxdb_insecure_skip_verify", "Skip certificate chain verification when connecting over TLS", false)
)

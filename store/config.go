package store

import "time"

// Config holds configuration for the Store.
type Config struct {
	// Database is the MongoDB database name. For DynamoDB it is used as the
	// table name prefix ("<Database>_<Collection>").
	// Default: "ffcs_db"
	Database string

	// Collections maps logical collection names to physical names.
	// Missing entries fall back to DefaultCollections.
	Collections map[string]string

	// ServerSelectionTimeout bounds how long the MongoDB driver waits for a
	// reachable server, and how long the connectivity check may take.
	// Default: 5s
	ServerSelectionTimeout time.Duration

	// Transactional enables multi-document atomic writes for operations that
	// span two documents, when the backend implements Transactor.
	// Default: false (best-effort sequential writes)
	Transactional bool

	// ScopeIndex is the optional DynamoDB GSI on the "_scope" attribute
	// (userAccount#campaignId#shard). When set, scoped reads use Query
	// instead of Scan.
	ScopeIndex string

	// ScopeShards is the number of partitions each scope is spread over in
	// the DynamoDB scope index. Reads fan out across all of them.
	// Default: 1
	ScopeShards int
}

// DefaultCollections are the physical names used by the laboratory database.
var DefaultCollections = map[string]string{
	Plates:            "Plates",
	Wells:             "Wells",
	Notifications:     "Notifications",
	Libraries:         "Libraries",
	CampaignLibraries: "Campaign_Libraries",
}

// DefaultConfig returns the settings used by the laboratory deployment.
func DefaultConfig() Config {
	return Config{
		Database:               "ffcs_db",
		ServerSelectionTimeout: 5 * time.Second,
		ScopeShards:            1,
	}
}

// validate fills defaults for unset values.
func (c *Config) validate() {
	if c.Database == "" {
		c.Database = "ffcs_db"
	}
	if c.ServerSelectionTimeout <= 0 {
		c.ServerSelectionTimeout = 5 * time.Second
	}
	if c.ScopeShards < 1 {
		c.ScopeShards = 1
	}
	names := make(map[string]string, len(DefaultCollections))
	for logical, physical := range DefaultCollections {
		names[logical] = physical
	}
	for logical, physical := range c.Collections {
		if _, known := names[logical]; known && physical != "" {
			names[logical] = physical
		}
	}
	c.Collections = names
}

package config

// ApplyDefaults sets default values for any zero values in cfg. Signal
// weights and adjuster bounds default inside their own packages.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/linematch/data/linematch.db"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.TimeoutMS == 0 {
		cfg.Embedding.TimeoutMS = 2000
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Matching.TopKCandidates == 0 {
		cfg.Matching.TopKCandidates = 100
	}
}

package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = ".minecraft/assets/skins"
	}
	if cfg.Search.DefaultAlgorithm == "" {
		cfg.Search.DefaultAlgorithm = "balanced"
	}
	if cfg.Search.DefaultTopN == 0 {
		cfg.Search.DefaultTopN = 5
	}
	if cfg.Search.MaxTopN == 0 {
		cfg.Search.MaxTopN = 20
	}
	if cfg.Search.ProgressEvery == 0 {
		cfg.Search.ProgressEvery = 100
	}
	// Workers stays 0 unless configured: 0 means one worker per core.
	if cfg.Embedding.SmallModelPath == "" {
		cfg.Embedding.SmallModelPath = ".skin-lookup/models/feature-small.onnx"
	}
	if cfg.Embedding.DeepModelPath == "" {
		cfg.Embedding.DeepModelPath = ".skin-lookup/models/feature-deep.onnx"
	}
	if cfg.Embedding.SmallDimensions == 0 {
		cfg.Embedding.SmallDimensions = 512
	}
	if cfg.Embedding.DeepDimensions == 0 {
		cfg.Embedding.DeepDimensions = 2048
	}
	if cfg.Embedding.InputSize == 0 {
		cfg.Embedding.InputSize = 224
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 4096
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.HistoryPath == "" {
		cfg.Storage.HistoryPath = ".skin-lookup/history.db"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./matches"
	}
}

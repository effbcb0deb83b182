package worker

import "runtime"

type PoolConfig struct {
	Workers             int
	QueueDepthPerWorker int
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:             min(runtime.NumCPU(), 4),
		QueueDepthPerWorker: 128,
	}
}

func (cfg *PoolConfig) ToPoolConfig() *PoolConfig {
	return cfg
}

func (cfg *PoolConfig) queueSize() int {
	return max(cfg.Workers, 1) * max(cfg.QueueDepthPerWorker, 1)
}

// ConfigurablePool is implemented by stage configs embedding a [PoolConfig].
type ConfigurablePool interface {
	ToPoolConfig() *PoolConfig
}

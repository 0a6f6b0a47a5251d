package config

import "time"

// Default returns the built-in configuration for a local single-node
// deployment: Postgres and Redis on localhost and two identical workers
// draining the shared queue.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        "5432",
			User:        "postgres",
			Password:    "",
			DBName:      "hookline",
			SSLMode:     "disable",
			AutoMigrate: true,
			PingTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Queue: QueueConfig{
			Driver:  "redis",
			Name:    "hookline:jobs",
			DataDir: "",
		},
		Scheduler: SchedulerConfig{
			ReconcileInterval: 10 * time.Second,
			ErrorBackoff:      60 * time.Second,
		},
		Worker: WorkerConfig{
			Count:     2,
			IdleSleep: time.Second,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Monitoring: MonitoringConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// Package config loads service configuration from a YAML file, an optional
// .env file and prefixed environment variables using Viper.
//
// # Usage
//
//	var cfg intentd.Config
//	err := config.LoadConfig("intentd", &cfg, config.WithEnvPrefix("INTENTFLOW"))
//
// Environment variables override file values. With the prefix INTENTFLOW,
// INTENTFLOW_ENGINE_MAX_NODES sets engine.max_nodes.
package config

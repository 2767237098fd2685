// Package config holds the configuration types shared by the broker and
// worker binaries.
package config

// LokiConfig points a logrus hook at a Grafana Loki push endpoint. Address
// left empty disables the hook entirely.
type LokiConfig struct {
	Address string            `yaml:"address" mapstructure:"address"`
	Labels  map[string]string `yaml:"labels" mapstructure:"labels"`
}

// LogConfig selects the logrus level/formatter pair and, optionally, a Loki
// sink for a single process.
type LogConfig struct {
	Level     string     `yaml:"level" mapstructure:"level"`
	Formatter string     `yaml:"formatter" mapstructure:"formatter"`
	Loki      LokiConfig `yaml:"loki" mapstructure:"loki"`
}

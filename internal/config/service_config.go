package config

// ServiceConfig carries the dotted identity string of a process, e.g.
// "org.wkcluster.Broker". It is loaded with the rest of the configuration;
// the logging setup does not add it to log lines.
type ServiceConfig struct {
	ID string `yaml:"id" mapstructure:"id"`
}

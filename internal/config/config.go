package config

import (
	"fmt"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// BrokerConfig is the ambient configuration layer for the broker process.
// The required operational parameters (instance count, worker binary path,
// output directory, per-request timeout) are supplied on the command line
// per the CLI contract; this struct only ever supplies the logging/identity
// extras layered underneath it.
type BrokerConfig struct {
	Service ServiceConfig `yaml:"service" mapstructure:"service"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// WorkerConfig is the ambient configuration layer for the worker process.
type WorkerConfig struct {
	Service ServiceConfig `yaml:"service" mapstructure:"service"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// Load resolves configuration for name ("broker" or "worker") from, in
// increasing precedence: the supplied defaults, an optional YAML file
// <name>.yaml (the file given to the global viper via SetConfigFile if there
// is one, else searched in $HOME/.config/wkcluster and then the current
// directory), and environment variables prefixed WKCLUSTER_. Callers apply
// the CLI flags the user set onto the result afterwards, so those take
// precedence over all three.
func Load(name string, into interface{}, defaults map[string]interface{}) error {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(fmt.Sprintf("%s/.config/wkcluster", home))
	}
	v.AddConfigPath(".")
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	if file := viper.ConfigFileUsed(); file != "" {
		v.SetConfigFile(file)
	}

	v.SetEnvPrefix("WKCLUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("reading config %s: %w", name, err)
		}
	}

	if err := v.Unmarshal(into); err != nil {
		return fmt.Errorf("unmarshalling config %s: %w", name, err)
	}

	return nil
}

// DefaultBrokerConfig returns the built-in defaults the config layer falls
// back to when no file or environment override is present.
func DefaultBrokerConfig() map[string]interface{} {
	return map[string]interface{}{
		"service.id":     "org.wkcluster.Broker",
		"log.level":      "info",
		"log.formatter":  "text",
	}
}

// DefaultWorkerConfig returns the built-in defaults for the worker process.
func DefaultWorkerConfig() map[string]interface{} {
	return map[string]interface{}{
		"service.id":     "org.wkcluster.Worker",
		"log.level":      "info",
		"log.formatter":  "text",
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"awsinventory/internal/logging"
)

const (
	// EnvPrefix prefixes every environment variable override
	EnvPrefix = "AWSINVENTORY"

	configDirName = ".awsinventory"
)

// flagNames maps config keys to the flags that override them
var flagNames = map[string]string{
	"aws.profile":             "profile",
	"aws.role":                "role",
	"app.max_workers":         "max-workers",
	"app.unit_timeout":        "unit-timeout",
	"app.log_format":          "log-format",
	"app.log_level":           "log-level",
	"app.requests_per_second": "requests-per-second",
	"app.max_retries":         "max-retries",
	"collect.services":        "services",
	"collect.regions":         "regions",
	"collect.all_regions":     "all-regions",
	"collect.formats":         "formats",
	"collect.output":          "output",
	"collect.output_dir":      "output-dir",
	"collect.bucket":          "bucket",
	"collect.bucket_region":   "bucket-region",
}

// Keys lists every configuration key in display order
var Keys = []string{
	"aws.profile",
	"aws.role",
	"app.max_workers",
	"app.unit_timeout",
	"app.log_format",
	"app.log_level",
	"app.requests_per_second",
	"app.max_retries",
	"collect.services",
	"collect.regions",
	"collect.all_regions",
	"collect.formats",
	"collect.output",
	"collect.output_dir",
	"collect.bucket",
	"collect.bucket_region",
}

// parameterSource tracks where each parameter value came from
type parameterSource struct {
	Key    string
	Value  interface{}
	Source string
}

// getParameterSource determines where a parameter value came from (config file, env var, flag, or default)
func getParameterSource(key string, cmd *cobra.Command) parameterSource {
	value := viper.Get(key)
	envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))

	flagName := flagNames[key]
	if flagName == "" {
		flagName = strings.ReplaceAll(key, ".", "-")
	}

	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			return parameterSource{key, value, "command line flag"}
		}

		// Walk up the command chain checking persistent flags
		for current := cmd; current != nil; current = current.Parent() {
			if f := current.PersistentFlags().Lookup(flagName); f != nil && f.Changed {
				return parameterSource{key, value, "command line flag"}
			}
		}
	}

	if _, exists := os.LookupEnv(envKey); exists {
		return parameterSource{key, value, "environment variable"}
	}

	if viper.GetViper().InConfig(key) {
		return parameterSource{key, value, "config file"}
	}

	return parameterSource{key, value, "default value"}
}

// LogConfigurationSources logs the source of each configuration parameter
func LogConfigurationSources(shouldLog bool, cmd *cobra.Command) {
	if !shouldLog {
		return
	}

	logging.Debug("Configuration parameter sources:", nil)
	for _, key := range Keys {
		source := getParameterSource(key, cmd)
		logging.Debug(fmt.Sprintf("  %s = %v (from %s)", source.Key, source.Value, source.Source), nil)
	}
}

// SetDefaults registers the default value of every configuration key
func SetDefaults() {
	viper.SetDefault("aws.profile", "default")
	viper.SetDefault("aws.role", "")
	viper.SetDefault("app.max_workers", 8)
	viper.SetDefault("app.unit_timeout", "5m")
	viper.SetDefault("app.log_format", "text")
	viper.SetDefault("app.log_level", "INFO")
	viper.SetDefault("app.requests_per_second", 5.0)
	viper.SetDefault("app.max_retries", DefaultMaxRetries)
	viper.SetDefault("collect.services", "all")
	viper.SetDefault("collect.regions", "")
	viper.SetDefault("collect.all_regions", false)
	viper.SetDefault("collect.formats", "xlsx")
	viper.SetDefault("collect.output", "filesystem")
	viper.SetDefault("collect.output_dir", "output")
	viper.SetDefault("collect.bucket", "")
	viper.SetDefault("collect.bucket_region", "")
}

// InitConfig initializes the Viper configuration
func InitConfig(shouldLog bool, cmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, configDirName))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	// A missing config file is fine; defaults and env vars apply
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if shouldLog {
			logging.Debug("No config file found, using defaults and environment variables", nil)
		}
	} else if shouldLog {
		logging.Debug("Loaded config file", map[string]interface{}{
			"path": viper.ConfigFileUsed(),
		})
	}

	return nil
}

// SetConfigFile sets a custom config file path and reloads the configuration
func SetConfigFile(configFile string) error {
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

const defaultConfig = `# awsinventory configuration file

# AWS Configuration
aws:
  profile: default  # AWS profile to use (supports SSO profiles)
  role: ""  # Role name to assume in the profile's account before collecting

# Application Configuration
app:
  max_workers: 8  # Maximum number of units of work collected concurrently
  unit_timeout: 5m  # Time limit for one (service, region) collection
  log_format: text  # Log output format (text or json)
  log_level: INFO  # Set logging level (DEBUG, INFO, WARN, ERROR)
  requests_per_second: 5  # Request pacing per service and region
  max_retries: 10  # SDK retries for a single request
  service_limits:  # Per-service pacing overrides
    route53: 4
    organizations: 1

# Collect Command Configuration
collect:
  services: all  # Services to collect (default: all supported services)
  # Regions to collect (default: us-east-1, us-east-2, sa-east-1, us-west-1, us-west-2)
  # regions:
  #   - us-east-1
  #   - us-west-2
  all_regions: false  # Discover and collect every enabled region
  formats: xlsx  # Report formats (xlsx, json)
  output: filesystem  # Archive destination for json (filesystem or s3)
  output_dir: output  # Directory for generated files
  bucket: ""  # S3 bucket name (required when output=s3)
  bucket_region: ""  # S3 bucket region (required when output=s3)
`

// WriteConfig writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("file %s already exists. Use --force to overwrite", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// BindFlags binds every known flag present on cmd to its config key
func BindFlags(cmd *cobra.Command) error {
	for _, key := range Keys {
		flag := cmd.Flags().Lookup(flagNames[key])
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", flag.Name, err)
		}
	}
	return nil
}

// HomeConfigPath returns the config file searched in the user's home
// directory when --config is not given
func HomeConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName, "config.yaml"), nil
}

// StringList reads a key that may be a YAML list or a comma-separated string
func StringList(key string) []string {
	var out []string
	for _, item := range viper.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

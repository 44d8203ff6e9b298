package winvault

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"southwinds.dev/winvault/audit"
)

// Config is the file and environment configuration surface.  Files are
// YAML; every key can also be supplied through the environment with the
// WINVAULT_ prefix and underscores for dots (WINVAULT_PROFILE_PATH etc).
type Config struct {
	Options Options
	Audit   audit.Config
}

// LoadConfig reads configuration from the given file.  An empty path
// searches the conventional locations ($HOME and the working directory) for
// a .winvault.yaml; a missing file there is not an error and yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setConfigDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".winvault")
	}

	v.SetEnvPrefix("WINVAULT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file found is fine, defaults and env vars apply.
	}

	cfg := &Config{
		Options: Options{
			ProfileFilePath:       v.GetString("profile.path"),
			FormatVersionOverride: v.GetString("profile.format_version"),
			VaultFilePath:         v.GetString("vault.path"),
			MachineScope:          v.GetBool("scope.machine"),
		},
		Audit: audit.Config{
			Enabled: v.GetBool("audit.enabled"),
			Type:    audit.ConfigType(v.GetString("audit.type")),
			Options: map[string]interface{}{
				"file_path":   v.GetString("audit.options.file_path"),
				"max_size":    v.GetInt("audit.options.max_size"),
				"max_backups": v.GetInt("audit.options.max_backups"),
			},
			LogLevel: v.GetString("audit.log_level"),
		},
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("profile.path", "")
	v.SetDefault("profile.format_version", "")
	v.SetDefault("vault.path", "")
	v.SetDefault("scope.machine", false)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.type", "file")
	v.SetDefault("audit.options.file_path", "audit.log")
	v.SetDefault("audit.options.max_size", 100)
	v.SetDefault("audit.options.max_backups", 5)
	v.SetDefault("audit.log_level", "info")
}

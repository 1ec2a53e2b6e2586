package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	CONFIGS_DIR_NAME      = ".config"
	FERRY_CONFIG_DIR_NAME = "ferry"
	CONFIG_FILE_NAME      = "config"
	CONFIG_FILE_EXT       = "yml"
)

// Config holds every tunable of the client and the server. It is resolved once
// at startup and passed by value from then on.
type Config struct {
	Address      string        `mapstructure:"address" validate:"required,hostname_rfc1123|ip"`
	Port         int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	OutputDir    string        `mapstructure:"output_dir" validate:"required"`
	ChunkSize    int           `mapstructure:"chunk_size" validate:"gte=0"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`
	LegacyHeader bool          `mapstructure:"legacy_header"`
	StatusAddr   string        `mapstructure:"status_addr"`
	Verbose      bool          `mapstructure:"verbose"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

func GetDefault() Config {
	return Config{
		Address:   "127.0.0.1",
		Port:      25565,
		OutputDir: "transferred-files",
		ChunkSize: 4096,
	}
}

// Addr returns the host:port the server listens on and the client connects to.
func (config Config) Addr() string {
	return net.JoinHostPort(config.Address, strconv.Itoa(config.Port))
}

func (config Config) Map() map[string]any {
	m := map[string]any{}
	for _, field := range structs.Fields(config) {
		key := field.Tag("mapstructure")
		value := field.Value()
		m[key] = value
	}
	return m
}

func (config Config) Yaml() []byte {
	m := config.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			builder.WriteString(fmt.Sprintf("%s: %q", k, v))
		default:
			builder.WriteString(fmt.Sprintf("%s: %v", k, v))
		}
		builder.WriteRune('\n')
	}
	return []byte(builder.String())
}

// Validate returns ErrInvalidConfig naming the offending settings.
func (config Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if config.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(config.StatusAddr); err != nil {
			return fmt.Errorf("%w: status_addr: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Load resolves the current viper state into a Config.
func Load() (Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return config, nil
}

// SetDefaults registers every default setting with viper.
func SetDefaults() {
	for k, v := range GetDefault().Map() {
		viper.SetDefault(k, v)
	}
}

// Init initializes the viper config.
// `config.yml` is created in $HOME/.config/ferry if not already existing.
// NOTE: The precedence levels of viper are the following: flags -> config file -> defaults.
func Init() error {
	SetDefaults()

	home, err := homedir.Dir()
	if err != nil {
		return fmt.Errorf("resolving home dir: %w", err)
	}

	configPath := filepath.Join(home, CONFIGS_DIR_NAME, FERRY_CONFIG_DIR_NAME)
	viper.AddConfigPath(configPath)
	viper.SetConfigName(CONFIG_FILE_NAME)
	viper.SetConfigType(CONFIG_FILE_EXT)

	if err := viper.ReadInConfig(); err != nil {
		// Create config file if not found.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			err := os.MkdirAll(configPath, os.ModePerm)
			if err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}

			configFile, err := os.Create(filepath.Join(configPath, fmt.Sprintf("%s.%s", CONFIG_FILE_NAME, CONFIG_FILE_EXT)))
			if err != nil {
				return fmt.Errorf("could not create config file: %w", err)
			}
			defer configFile.Close()

			_, err = configFile.Write(GetDefault().Yaml())
			if err != nil {
				return fmt.Errorf("could not write defaults to config file: %w", err)
			}
		} else {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}
	return nil
}

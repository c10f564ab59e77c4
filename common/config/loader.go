package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/rainbow-me/rpc-interceptors/common/env"
	"github.com/rainbow-me/rpc-interceptors/common/logger"
)

const (
	fileFormat     = ".yaml"
	relativePath   = "./cmd/config"
	binaryPath     = "./config"
	binaryDir      = "target"
	binaryInDocker = "app"
	envVarPrefix   = "env://"
)

// YamlReadConfig holds the configuration paths (relative and absolute).
type YamlReadConfig struct {
	RelativePath string
	AbsolutePath string
	DynamicDir   string
	Defaults     map[string]any
}

// ReadConfigOption is a function signature used to set configuration options.
type ReadConfigOption func(*YamlReadConfig)

// WithRelativePath sets a relative path for the config file.
func WithRelativePath(path string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.RelativePath = path
	}
}

// WithAbsolutePath sets an absolute path for the config file.
func WithAbsolutePath(path string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.AbsolutePath = path
	}
}

// WithDynamicDir allows setting a dynamic subdirectory for the configuration path.
func WithDynamicDir(dynamicDir string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.DynamicDir = dynamicDir
	}
}

// WithDefaults registers values used for keys missing from both the file and the environment.
func WithDefaults(defaults map[string]any) ReadConfigOption {
	return func(config *YamlReadConfig) {
		if config.Defaults == nil {
			config.Defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			config.Defaults[k] = v
		}
	}
}

// LoadConfig reads <dir>/<ENVIRONMENT>.yaml into conf. String values of the form env://NAME are
// replaced by the NAME environment variable, and every key can be overridden by an environment
// variable with dots replaced by underscores.
func LoadConfig(conf any, log *logger.Logger, options ...ReadConfigOption) error {
	config := &YamlReadConfig{RelativePath: relativePath}
	for _, option := range options {
		option(config)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get current working directory")
	}

	// Binaries built into target/ or shipped in the docker image keep their config next to them.
	if config.AbsolutePath == "" &&
		(strings.Contains(currentDir, binaryDir) || strings.Contains(currentDir, binaryInDocker)) {
		config.RelativePath = binaryPath
	}

	pathToConfigDir := config.RelativePath
	if config.AbsolutePath != "" {
		pathToConfigDir = config.AbsolutePath
	}
	if config.DynamicDir != "" {
		pathToConfigDir = filepath.Join(pathToConfigDir, config.DynamicDir)
	}

	currentEnv, err := env.GetApplicationEnv()
	if err != nil {
		return errors.Wrap(err, "invalid environment")
	}

	filePath := filepath.Join(pathToConfigDir, currentEnv.String()+fileFormat)
	log.Info("Reading config file", logger.String("path", filePath), logger.String("directory", currentDir))

	v := viper.New()
	for k, val := range config.Defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(filePath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read configuration file %s", filePath)
	}

	for _, key := range v.AllKeys() {
		resolveEnvPlaceholder(v, key, log)
	}

	if err := v.Unmarshal(conf); err != nil {
		return errors.Wrap(err, "failed to unmarshal configuration")
	}

	return nil
}

func resolveEnvPlaceholder(v *viper.Viper, key string, log *logger.Logger) {
	str, ok := v.Get(key).(string)
	if !ok || !strings.HasPrefix(str, envVarPrefix) {
		return
	}

	envVar := strings.TrimPrefix(str, envVarPrefix)
	envValue, exists := os.LookupEnv(envVar)
	if !exists {
		log.Warn("environment variable not found", logger.String("variableName", envVar))
	}
	v.Set(key, envValue)
}

// MustLoadConfig is LoadConfig for process start-up code paths that cannot continue without configuration.
func MustLoadConfig(conf any, log *logger.Logger, options ...ReadConfigOption) {
	if err := LoadConfig(conf, log, options...); err != nil {
		panic(fmt.Sprintf("load configuration: %v", err))
	}
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix string = "BACKOFFICE"

// ConfigHandler reads config.yaml and secret_config.yaml and merges them with the environment.
// Precedence, strongest first: BACKOFFICE_* environment variables, the secret file, the regular
// file, the defaults below. Merging replaces lists instead of appending to them.
type ConfigHandler struct {
	mainViper   *viper.Viper
	secretViper *viper.Viper
	lock        *sync.Mutex
}

// HandleChanges calls callback with the re-read configuration whenever one of the files changes.
func (c *ConfigHandler) HandleChanges(callback func(Config, error)) {
	onChange := func(which string) func(fsnotify.Event) {
		return func(e fsnotify.Event) {
			slog.Info("CONFIG", "message", which+" config file changed", "path", e.Name, "op", e.Op.String())
			callback(c.Config())
		}
	}
	c.mainViper.OnConfigChange(onChange("main"))
	c.secretViper.OnConfigChange(onChange("secret"))
}

func NewConfigHandler() *ConfigHandler {
	// CONFIG_LOCATION comes first, viper stops at the first directory holding the file
	searchPaths := []string{"/etc/backoffice", "."}
	if location := os.Getenv("CONFIG_LOCATION"); location != "" {
		searchPaths = append([]string{location}, searchPaths...)
	}
	main := newYAMLViper("config", searchPaths)
	setDefaults(main)
	return &ConfigHandler{
		mainViper:   main,
		secretViper: newYAMLViper("secret_config", searchPaths),
		lock:        &sync.Mutex{},
	}
}

func newYAMLViper(name string, searchPaths []string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(name)
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	return v
}

// setDefaults holds the hardcoded fallbacks used when neither a file nor the environment sets a value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("runningEnvironment", string(Development))
	v.SetDefault("debugMode", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rateLimits.enabled", false)
	v.SetDefault("server.rateLimits.rate", 20)
	v.SetDefault("server.rateLimits.burst", 40)
	v.SetDefault("server.allowOrigin", []string{})
	v.SetDefault("apis.userApiUrl", defaultUserAPIURL)
	v.SetDefault("apis.systemApiUrl", defaultSystemAPIURL)
	v.SetDefault("apis.runtimeConfigUrl", "")
	v.SetDefault("credentials.redis.addresses", []string{"127.0.0.1:6379"})
	v.SetDefault("credentials.redis.isSentinel", false)
	v.SetDefault("credentials.redis.password", "")
	v.SetDefault("credentials.redis.masterName", "")
	v.SetDefault("credentials.redis.dbIndex", 0)
	v.SetDefault("credentials.keyPrefix", "backoffice")
	v.SetDefault("credentials.profile", "default")
	v.SetDefault("credentials.accessTokenTTL", "6h")
	v.SetDefault("credentials.refreshTokenTTL", "168h")
	v.SetDefault("credentials.tokenEncryption.enabled", false)
	v.SetDefault("credentials.tokenEncryption.secretKey", "")
	v.SetDefault("client.requestTimeout", "20s")
	v.SetDefault("client.refreshTimeout", "30s")
	v.SetDefault("client.notifyDebounce", "1500ms")
	v.SetDefault("client.verifyInterval", "5m")
	v.SetDefault("client.requiredRole", "System Admin")
	v.SetDefault("monitoring.sentry.enabled", false)
	v.SetDefault("monitoring.sentry.dsn", "")
	v.SetDefault("monitoring.sentry.environment", "")
	v.SetDefault("monitoring.sentry.sampleRate", 0.0)
	v.SetDefault("monitoring.prometheus.enabled", false)
	v.SetDefault("monitoring.prometheus.port", 8765)
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			parseStringAsURL(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}

// mergeSecrets overlays the secret file, with the environment already bound to it, on the main file.
func (c *ConfigHandler) mergeSecrets() error {
	var secrets map[string]any
	err := c.secretViper.Unmarshal(&secrets)
	if err != nil {
		return err
	}
	return c.mainViper.MergeConfigMap(secrets)
}

// readOptional reads a config file, a missing file is not an error.
func readOptional(v *viper.Viper, which string) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		slog.Info("CONFIG", "message", "no "+which+" config file found, skipping it")
		return nil
	}
	return err
}

func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (c *ConfigHandler) load() (Config, error) {
	if err := readOptional(c.mainViper, "main"); err != nil {
		return Config{}, err
	}
	if err := readOptional(c.secretViper, "secret"); err != nil {
		return Config{}, err
	}
	// every known key can be set from the environment, binding to the secret viper
	// makes the environment beat both files once merged
	for _, key := range c.mainViper.AllKeys() {
		if err := c.secretViper.BindEnv(key, envKey(key)); err != nil {
			return Config{}, fmt.Errorf("config: unable to bind env %s: %w", envKey(key), err)
		}
	}
	if err := c.mergeSecrets(); err != nil {
		return Config{}, err
	}
	var output Config
	if err := c.mainViper.Unmarshal(&output, decodeHook()); err != nil {
		return Config{}, err
	}
	if err := output.Validate(); err != nil {
		return Config{}, err
	}
	return output, nil
}

// Config re-reads the files and the environment and returns the validated result.
func (c *ConfigHandler) Config() (Config, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.load()
}

// Watch starts watching both files, see HandleChanges.
func (c *ConfigHandler) Watch() {
	c.mainViper.WatchConfig()
	c.secretViper.WatchConfig()
}

// parseStringAsURL decodes non empty strings into url.URL fields.
func parseStringAsURL() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(url.URL{}) {
			return data, nil
		}
		raw, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string for a URL, got %T", data)
		}
		if raw == "" {
			return nil, fmt.Errorf("a URL cannot be empty")
		}
		return url.Parse(raw)
	}
}

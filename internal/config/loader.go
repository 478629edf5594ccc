package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line
// arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file to
// produce a Config. Flags override file settings.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Collection:   "metar-all",
		Rate:         5.0,
		Duration:     60 * time.Second,
		Fluctuation:  0.5,
		MaxConns:     10,
		LocsPerReq:   1,
		TimeMode:     TimeModeSingle,
		Timeout:      30 * time.Second,
		DrainTimeout: 5 * time.Second,
		ArrivalModel: ArrivalModelPoisson,
		MaxHoursBack: 48,
		ConfigFile:   configPath,
		Tracing:      TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Collection = strings.TrimSpace(cfg.Collection)

	// Credentials can come from the environment so they stay out of shell
	// history and config files.
	if cfg.Password == "" {
		if envPassword := os.Getenv("EDRLOAD_PASSWORD"); envPassword != "" {
			cfg.Password = envPassword
		}
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "endpoint", "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("endpoint", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "collection"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("collection", err)
		}
		if val != "" {
			cfg.Collection = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "locations"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return wrapSetting("locations", err)
		}
		cfg.Locations = vals
	}
	if raw, ok := lookupSetting(settings, "username"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("username", err)
		}
		cfg.Username = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "password"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("password", err)
		}
		cfg.Password = val
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return wrapSetting("rate", err)
		}
		cfg.Rate = val
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return wrapSetting("duration", err)
		}
		cfg.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "fluctuation"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return wrapSetting("fluctuation", err)
		}
		cfg.Fluctuation = val
	}
	if raw, ok := lookupSetting(settings, "maxconnections", "max_connections", "max-connections"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("max_connections", err)
		}
		cfg.MaxConns = val
	}
	if raw, ok := lookupSetting(settings, "locationsperrequest", "locations_per_request", "locations-per-request"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("locations_per_request", err)
		}
		cfg.LocsPerReq = val
	}
	if raw, ok := lookupSetting(settings, "timemode", "time_mode", "time-mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("time_mode", err)
		}
		if val != "" {
			cfg.TimeMode = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return wrapSetting("timeout", err)
		}
		cfg.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "draintimeout", "drain_timeout", "drain-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return wrapSetting("drain_timeout", err)
		}
		cfg.DrainTimeout = dur
	}
	if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		val, err := asString(raw)
		if err != nil {
			return wrapSetting("arrival_model", err)
		}
		if val != "" {
			cfg.ArrivalModel = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return wrapSetting("seed", err)
		}
		cfg.Seed = val
	}
	if raw, ok := lookupSetting(settings, "maxhoursback", "max_hours_back", "max-hours-back"); ok {
		val, err := asInt(raw)
		if err != nil {
			return wrapSetting("max_hours_back", err)
		}
		cfg.MaxHoursBack = val
	}
	if raw, ok := lookupSetting(settings, "trivial"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("trivial", err)
		}
		cfg.Trivial = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("insecure", err)
		}
		cfg.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "forceclose", "force_close", "force-close"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("force_close", err)
		}
		cfg.ForceClose = val
	}
	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("verbose", err)
		}
		cfg.Verbose = val
	}
	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return wrapSetting("json_output", err)
		}
		cfg.JSONOutput = val
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return wrapSetting("thresholds", err)
		}
		cfg.Thresholds = vals
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return wrapSetting("tracing", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracing(value interface{}, defaults TracingConfig) (TracingConfig, error) {
	if value == nil {
		return defaults, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}

	tracing := defaults
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("endpoint", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("protocol", err)
		}
		if val != "" {
			tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
		}
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("service_name", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("sample_rate", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("insecure", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, wrapSetting("propagate", err)
		}
		tracing.Propagate = val
	}
	return tracing, nil
}

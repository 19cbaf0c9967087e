package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validLogOutputs = map[string]bool{"stdout": true, "stderr": true}
)

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(config *Config) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns every problem found.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&config.Server)
	v.validateLogging(&config.Logging)
	v.validateTracing(&config.Tracing)
	v.validateMetrics(&config.Metrics)
	v.validateCache(&config.Cache)
	v.validateFields(&config.Fields)

	if config.Schemas.Path == "" {
		v.addError("schemas.path", "is required")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(server *ServerConfig) {
	if server.Port < 1 || server.Port > 65535 {
		v.addError("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", server.Port))
	}
	if server.ReadTimeout < 0 {
		v.addError("server.readTimeout", "must not be negative")
	}
	if server.WriteTimeout < 0 {
		v.addError("server.writeTimeout", "must not be negative")
	}
	if server.ShutdownTimeout < 0 {
		v.addError("server.shutdownTimeout", "must not be negative")
	}

	rl := server.RateLimit
	if rl == nil || !rl.Enabled {
		return
	}
	if rl.RequestsPerSecond <= 0 {
		v.addError("server.rateLimit.requestsPerSecond", "must be positive")
	}
	if rl.Burst < 1 {
		v.addError("server.rateLimit.burst", "must be at least 1")
	}
}

func (v *Validator) validateLogging(logging *LoggingConfig) {
	if logging.Level != "" && !validLogLevels[logging.Level] {
		v.addError("logging.level", fmt.Sprintf("invalid level %q", logging.Level))
	}
	if logging.Format != "" && !validLogFormats[logging.Format] {
		v.addError("logging.format", fmt.Sprintf("invalid format %q", logging.Format))
	}
	if logging.Output != "" && !validLogOutputs[logging.Output] {
		v.addError("logging.output", fmt.Sprintf("invalid output %q", logging.Output))
	}
}

func (v *Validator) validateTracing(tracing *TracingConfig) {
	if tracing.SamplingRate < 0 || tracing.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "must be between 0 and 1")
	}
}

func (v *Validator) validateMetrics(metrics *MetricsConfig) {
	if metrics.Enabled && !strings.HasPrefix(metrics.Path, "/") {
		v.addError("metrics.path", "must start with /")
	}
}

func (v *Validator) validateCache(cache *CacheConfig) {
	if !cache.Enabled {
		return
	}

	switch cache.Type {
	case CacheTypeMemory:
		if cache.MaxEntries < 0 {
			v.addError("cache.maxEntries", "must not be negative")
		}
	case CacheTypeRedis:
		v.validateRedis(cache.Redis)
	default:
		v.addError("cache.type", fmt.Sprintf("must be %q or %q, got %q", CacheTypeMemory, CacheTypeRedis, cache.Type))
	}

	if cache.TTL < 0 {
		v.addError("cache.ttl", "must not be negative")
	}
}

func (v *Validator) validateRedis(redis *RedisCacheConfig) {
	if redis == nil || redis.URL == "" {
		v.addError("cache.redis.url", "is required for redis cache")
		return
	}
	if redis.PoolSize < 0 {
		v.addError("cache.redis.poolSize", "must not be negative")
	}
	if redis.TTLJitter < 0 || redis.TTLJitter > 1 {
		v.addError("cache.redis.ttlJitter", "must be between 0 and 1")
	}

	cb := redis.CircuitBreaker
	if cb != nil && cb.Enabled {
		if cb.Threshold < 1 {
			v.addError("cache.redis.circuitBreaker.threshold", "must be at least 1")
		}
		if cb.Timeout <= 0 {
			v.addError("cache.redis.circuitBreaker.timeout", "must be positive")
		}
		if cb.HalfOpenRequests < 0 {
			v.addError("cache.redis.circuitBreaker.halfOpenRequests", "must not be negative")
		}
	}
}

func (v *Validator) validateFields(fields *FieldsConfig) {
	if fields.MaxLength < 0 {
		v.addError("fields.maxLength", "must not be negative")
	}

	for _, name := range slices.Sorted(maps.Keys(fields.Presets)) {
		props := fields.Presets[name]
		path := fmt.Sprintf("fields.presets[%s]", name)
		if len(name) < 2 || name[0] != ':' {
			v.addError(path, "preset name must start with ':'")
		}
		if len(props) == 0 {
			v.addError(path, "must select at least one property")
		}
		for _, p := range props {
			if p == "" || strings.ContainsAny(p, ",[]()!:~|*") {
				v.addError(path, fmt.Sprintf("invalid property name %q", p))
			}
		}
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

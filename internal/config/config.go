package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the service settings. Everything comes from the environment,
// optionally seeded from a .env file.
type Config struct {
	Port      string `validate:"required,numeric"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`

	Engine         string `validate:"oneof=latex html"`
	LatexBinary    string `validate:"required"`
	LatexExtraArgs string
	ChromePath     string
	Stylesheet     string

	CompileTimeout    time.Duration `validate:"gt=0"`
	TempDir           string        `validate:"required"`
	CleanupDelay      time.Duration `validate:"gte=0"`
	MaxSourceBytes    int           `validate:"gt=0"`
	MaxConcurrentJobs int           `validate:"gte=0"`
}

// Load reads envFile when it exists, then the environment. A missing file
// is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load %s", envFile)
		}
	}

	timeout, err := getEnvDuration("COMPILE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse COMPILE_TIMEOUT")
	}
	delay, err := getEnvDuration("CLEANUP_DELAY", 2*time.Second)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse CLEANUP_DELAY")
	}
	maxSource, err := getEnvInt("MAX_SOURCE_BYTES", 1<<20)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse MAX_SOURCE_BYTES")
	}
	maxJobs, err := getEnvInt("MAX_CONCURRENT_JOBS", 8)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse MAX_CONCURRENT_JOBS")
	}

	cfg := Config{
		Port:              getEnv("PORT", "3000"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		Engine:            getEnv("COMPILE_ENGINE", "latex"),
		LatexBinary:       getEnv("LATEX_BINARY", "pdflatex"),
		LatexExtraArgs:    getEnv("LATEX_EXTRA_ARGS", ""),
		ChromePath:        getEnv("CHROME_PATH", ""),
		Stylesheet:        getEnv("HTML_STYLESHEET", "templates/style.css"),
		CompileTimeout:    timeout,
		TempDir:           getEnv("COMPILE_TEMP_DIR", filepath.Join(os.TempDir(), "resume-compiler")),
		CleanupDelay:      delay,
		MaxSourceBytes:    maxSource,
		MaxConcurrentJobs: maxJobs,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Newf("config %s failed on '%s' validation (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

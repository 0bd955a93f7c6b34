// Package config loads the run settings and the parameter space of the CLI.
//
// Settings come from defaults, an optional YAML file, CHO_* environment
// variables and command-line flags, in increasing order of precedence. The
// parameter space is read from a YAML file with either explicit dimensions
// or a per-harmonic shorthand.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "CHO"

// V is the validator instance used for Settings.
var V *validator.Validate

func init() {
	V = validator.New()

	// Report fields by their configuration key.
	V.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})
}

// Settings holds the run configuration of the CLI.
type Settings struct {
	// Optimization
	Budget        int     `mapstructure:"budget" validate:"gte=2"`
	RandomStarts  int     `mapstructure:"random_starts" validate:"gte=2,ltefield=Budget"`
	NumCandidates int     `mapstructure:"num_candidates" validate:"gte=1"`
	NumRestarts   int     `mapstructure:"num_restarts" validate:"gte=0"`
	HyperRestarts int     `mapstructure:"hyper_restarts" validate:"gte=0"`
	Seed          int64   `mapstructure:"seed"`
	Mode          string  `mapstructure:"mode" validate:"oneof=strict tolerant"`
	Penalty       string  `mapstructure:"penalty" validate:"oneof=capped exclude"`
	Kernel        string  `mapstructure:"kernel" validate:"oneof=matern52 rbf"`
	Acquisition   string  `mapstructure:"acquisition" validate:"oneof=ei pi lcb"`
	Xi            float64 `mapstructure:"xi" validate:"gte=0"`
	Beta          float64 `mapstructure:"beta" validate:"gte=0"`

	// Space is the path of the parameter space file. Empty means the
	// settings file itself.
	Space string `mapstructure:"space"`

	// Simulator
	Command []string      `mapstructure:"command"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// Output
	Out       string `mapstructure:"out" validate:"required"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`
}

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}

	return "invalid settings: " + strings.Join(msgs, "; ")
}

// Load reads the settings.
//
// path is an optional YAML settings file; flags, if not nil, override every
// other source for the flags the user set. Flag names map to keys by
// replacing "-" with "_" (--random-starts sets random_starts).
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error

		flags.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}

			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})

		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if s.Space == "" {
		s.Space = path
	}

	if err := Validate(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks s and returns ValidationErrors if it is invalid.
func Validate(s *Settings) error {
	if err := V.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// OptimizationConfig converts s into the optimizer configuration. Logger,
// ProgressChan and Recorder are left for the caller.
func (s *Settings) OptimizationConfig() (cho.Config, error) {
	config := cho.DefaultConfig()

	config.Budget = s.Budget
	config.RandomStarts = s.RandomStarts
	config.NumCandidates = s.NumCandidates
	config.NumRestarts = s.NumRestarts
	config.HyperRestarts = s.HyperRestarts
	config.Seed = s.Seed
	config.AcqParams.Xi = s.Xi
	config.AcqParams.Beta = s.Beta

	var err error

	if config.Mode, err = cho.ParseSentinelPolicy(s.Mode); err != nil {
		return config, err
	}

	if config.Penalty, err = cho.ParsePenaltyRule(s.Penalty); err != nil {
		return config, err
	}

	if config.Kernel, err = cho.ParseKernelType(s.Kernel); err != nil {
		return config, err
	}

	switch s.Acquisition {
	case "ei", "":
		config.AcquisitionFunc = cho.ExpectedImprovement
	case "pi":
		config.AcquisitionFunc = cho.ProbabilityOfImprovement
	case "lcb":
		config.AcquisitionFunc = cho.LowerConfidenceBound
	default:
		return config, &cho.ConfigurationError{Field: "AcquisitionFunc", Reason: fmt.Sprintf("unknown acquisition %q", s.Acquisition)}
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := cho.DefaultConfig()

	// Optimization defaults
	v.SetDefault("budget", defaults.Budget)
	v.SetDefault("random_starts", defaults.RandomStarts)
	v.SetDefault("num_candidates", defaults.NumCandidates)
	v.SetDefault("num_restarts", defaults.NumRestarts)
	v.SetDefault("hyper_restarts", defaults.HyperRestarts)
	v.SetDefault("seed", 0)
	v.SetDefault("mode", defaults.Mode.String())
	v.SetDefault("penalty", defaults.Penalty.String())
	v.SetDefault("kernel", defaults.Kernel.String())
	v.SetDefault("acquisition", "ei")
	v.SetDefault("xi", defaults.AcqParams.Xi)
	v.SetDefault("beta", defaults.AcqParams.Beta)
	v.SetDefault("space", "")

	// Simulator defaults
	v.SetDefault("command", []string{})
	v.SetDefault("timeout", time.Duration(0))

	// Output defaults
	v.SetDefault("out", "results")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// formatValidationErrors converts validator errors to ValidationErrors.
func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	validationErrors := make(ValidationErrors, 0, len(errs))
	for _, e := range errs {
		validationErrors = append(validationErrors, ValidationError{
			Field:   e.Field(),
			Message: getErrorMessage(e),
		})
	}

	return validationErrors
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "ltefield":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

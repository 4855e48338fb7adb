package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"crisisbench/internal/common/fsutil"
)

// Config holds every endpoint, credential and tunable for a run. It is built
// once in the command layer and handed to each component's constructor; no
// component reads the environment on its own.
type Config struct {
	// Inputs
	QuestionsFile string `json:"questions_file" yaml:"questions_file" toml:"questions_file" env:"CRISISBENCH_QUESTIONS_FILE,overwrite"`
	ModelsFile    string `json:"models_file" yaml:"models_file" toml:"models_file" env:"CRISISBENCH_MODELS_FILE,overwrite"`

	// Outputs
	ResultsDir    string `json:"results_dir" yaml:"results_dir" toml:"results_dir" env:"CRISISBENCH_RESULTS_DIR,overwrite"`
	EvalOutputDir string `json:"eval_output_dir" yaml:"eval_output_dir" toml:"eval_output_dir" env:"CRISISBENCH_EVAL_OUTPUT_DIR,overwrite"`

	// Local inference server (OpenAI-compatible chat completions)
	InferenceURL string `json:"inference_url" yaml:"inference_url" toml:"inference_url" env:"LM_STUDIO_API_URL,overwrite"`

	// Model loader CLI
	LMSPath string `json:"lms_path" yaml:"lms_path" toml:"lms_path" env:"CRISISBENCH_LMS_PATH,overwrite"`

	// Judge
	GeminiAPIKey string `json:"-" yaml:"-" toml:"-" env:"GEMINI_API_KEY,overwrite"`
	GeminiModel  string `json:"gemini_model" yaml:"gemini_model" toml:"gemini_model" env:"GEMINI_MODEL,overwrite"`

	// Timeouts, in seconds
	LoadTimeoutSec   int `json:"load_timeout_sec" yaml:"load_timeout_sec" toml:"load_timeout_sec" env:"CRISISBENCH_LOAD_TIMEOUT_SEC,overwrite"`
	VerifyBackoffSec int `json:"verify_backoff_sec" yaml:"verify_backoff_sec" toml:"verify_backoff_sec" env:"CRISISBENCH_VERIFY_BACKOFF_SEC,overwrite"`
	AskTimeoutSec    int `json:"ask_timeout_sec" yaml:"ask_timeout_sec" toml:"ask_timeout_sec" env:"CRISISBENCH_ASK_TIMEOUT_SEC,overwrite"`
	GradeTimeoutSec  int `json:"grade_timeout_sec" yaml:"grade_timeout_sec" toml:"grade_timeout_sec" env:"CRISISBENCH_GRADE_TIMEOUT_SEC,overwrite"`

	// Observability
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" toml:"metrics_addr" env:"CRISISBENCH_METRICS_ADDR,overwrite"`
	LogLevel    string `json:"log_level" yaml:"log_level" toml:"log_level" env:"CRISISBENCH_LOG_LEVEL,overwrite"`
}

// Default returns the configuration used when no file and no env override a
// field. The timeout values mirror the external resources they bound: model
// loads get a hard 180s ceiling, inference and judge calls 300s each.
func Default() Config {
	return Config{
		QuestionsFile:    "crisis_questions.json",
		ModelsFile:       "models_config.json",
		ResultsDir:       "test_results",
		EvalOutputDir:    "eval_results",
		InferenceURL:     "http://localhost:1234/v1",
		LMSPath:          "lms",
		GeminiModel:      "gemini-2.5-pro",
		LoadTimeoutSec:   180,
		VerifyBackoffSec: 10,
		AskTimeoutSec:    300,
		GradeTimeoutSec:  300,
		LogLevel:         "info",
	}
}

// Load builds the effective configuration: defaults, then an optional file
// (format chosen by extension: .yaml/.yml, .json, .toml), then environment
// variables on top.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		case ".json":
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		case ".toml":
			if err := toml.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		default:
			return cfg, fmt.Errorf("unsupported config extension: %s", ext)
		}
	}
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return cfg, err
	}
	for _, p := range []*string{&cfg.QuestionsFile, &cfg.ModelsFile, &cfg.ResultsDir, &cfg.EvalOutputDir} {
		expanded, err := fsutil.ExpandHome(*p)
		if err != nil {
			return cfg, err
		}
		*p = expanded
	}
	return cfg, nil
}

// Validate rejects configurations no run mode could work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.InferenceURL) == "" {
		return fmt.Errorf("inference_url must not be empty")
	}
	if strings.TrimSpace(c.ResultsDir) == "" {
		return fmt.Errorf("results_dir must not be empty")
	}
	if c.LoadTimeoutSec <= 0 || c.AskTimeoutSec <= 0 || c.GradeTimeoutSec <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

func (c Config) LoadTimeout() time.Duration { return time.Duration(c.LoadTimeoutSec) * time.Second }
func (c Config) VerifyBackoff() time.Duration {
	return time.Duration(c.VerifyBackoffSec) * time.Second
}
func (c Config) AskTimeout() time.Duration   { return time.Duration(c.AskTimeoutSec) * time.Second }
func (c Config) GradeTimeout() time.Duration { return time.Duration(c.GradeTimeoutSec) * time.Second }

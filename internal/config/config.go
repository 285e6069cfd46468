package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// ShutdownTimeoutSeconds bounds how long in-flight requests and tasks
	// are given to finish on SIGINT/SIGTERM.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig selects and configures the task store.
type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or memory.
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite memory"`
	// URL is a Postgres connection string or a SQLite file path.
	URL          string `mapstructure:"url" validate:"required_unless=Driver memory"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// LLMConfig holds process-wide defaults for model providers. A task's own
// model info always takes precedence over these values.
type LLMConfig struct {
	GeminiAPIKey          string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey          string `mapstructure:"openai_api_key"`
	OpenAIBaseURL         string `mapstructure:"openai_base_url" validate:"omitempty,url"`
	OllamaHost            string `mapstructure:"ollama_host" validate:"omitempty,url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// TaskConfig tunes task execution.
type TaskConfig struct {
	// Concurrency is the per-task executor limit.
	Concurrency  int `mapstructure:"concurrency" validate:"gte=1"`
	Retries      int `mapstructure:"retries" validate:"gte=0"`
	RetryDelayMs int `mapstructure:"retry_delay_ms" validate:"gte=0"`
	// MaxConcurrentTasks caps tasks running at once; 0 means unbounded.
	MaxConcurrentTasks int    `mapstructure:"max_concurrent_tasks" validate:"gte=0"`
	StaleTaskMinutes   int    `mapstructure:"stale_task_minutes" validate:"gte=1"`
	SweepSchedule      string `mapstructure:"sweep_schedule" validate:"required"`
	DefaultLanguage    string `mapstructure:"default_language" validate:"required"`
}

package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/service/bonuspipeline"
	"github.com/yourusername/bible-tournament-api/internal/service/quizengine"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Email    EmailConfig
	Cron     CronConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `validate:"required"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     string `validate:"required"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=silent error warn info"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=single sentinel cluster"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
}

// JWTConfig содержит настройки проверки токенов. Токены выпускает сервис аутентификации.
type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required,min=16"`
	Issuer string `mapstructure:"issuer"`
}

// EngineConfig настройки движков вопросов, турниров, бонусов и квалификации
type EngineConfig struct {
	Lifecycle LifecycleSettings
	Allocator AllocatorSettings
	Bonus     BonusSettings
	Quiz      QuizSettings
}

// LifecycleSettings настройки жизненного цикла вопросов
type LifecycleSettings struct {
	MinimumQuestionsPerCategory int `mapstructure:"minimum_questions_per_category" validate:"gte=1"`
	HealthWindowDays            int `mapstructure:"health_window_days" validate:"gte=1"`
}

// AllocatorSettings настройки выбора вопросов для турниров
type AllocatorSettings struct {
	DefaultReleaseMode string `mapstructure:"default_release_mode" validate:"oneof=immediate delayed manual"`
	DefaultDelayHours  int    `mapstructure:"default_delay_hours" validate:"gte=0"`
}

// BonusSettings настройки бонусного пайплайна
type BonusSettings struct {
	Tiers         []bonuspipeline.TierRequirement `mapstructure:"tiers" validate:"dive"`
	MaxVariations int                             `mapstructure:"max_variations" validate:"gte=1"`
	StepDelay     time.Duration                   `mapstructure:"step_delay"`
	JobTimeout    time.Duration                   `mapstructure:"job_timeout"`
}

// QuizSettings настройки квалификационного теста по умолчанию
type QuizSettings struct {
	QuestionsCount        int     `mapstructure:"questions_count" validate:"gte=1,lte=100"`
	TimeLimitMinutes      int     `mapstructure:"time_limit_minutes" validate:"gte=0"`
	PassPercentage        float64 `mapstructure:"pass_percentage" validate:"gte=0,lte=100"`
	ScoringMethod         string  `mapstructure:"scoring_method" validate:"oneof=average best latest"`
	MaxAttempts           int     `mapstructure:"max_attempts" validate:"gte=1"`
	ShuffleOptions        bool    `mapstructure:"shuffle_options"`
	TimeLimitGraceSeconds int     `mapstructure:"time_limit_grace_seconds" validate:"gte=0"`
}

// EmailConfig настройки уведомлений рецензентов
type EmailConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ResendAPIKey   string   `mapstructure:"resend_api_key" validate:"required_if=Enabled true"`
	From           string   `mapstructure:"from" validate:"required_if=Enabled true"`
	ReviewerEmails []string `mapstructure:"reviewer_emails"`
}

// CronConfig расписание фоновых задач
type CronConfig struct {
	// PracticeReleaseSpec расписание возврата вопросов завершенных турниров в практику
	PracticeReleaseSpec string `mapstructure:"practice_release_spec" validate:"required"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// BonusPipelineConfig переводит настройки в конфигурацию пайплайна
func (e *EngineConfig) BonusPipelineConfig() *bonuspipeline.Config {
	cfg := bonuspipeline.DefaultConfig()
	if len(e.Bonus.Tiers) > 0 {
		cfg.Tiers = e.Bonus.Tiers
	}
	cfg.MaxVariations = e.Bonus.MaxVariations
	cfg.StepDelay = e.Bonus.StepDelay
	if e.Bonus.JobTimeout > 0 {
		cfg.JobTimeout = e.Bonus.JobTimeout
	}
	return cfg
}

// QuizDefaults возвращает настройки теста по умолчанию
func (e *EngineConfig) QuizDefaults() entity.QuizSettings {
	return entity.QuizSettings{
		QuestionsCount:   e.Quiz.QuestionsCount,
		TimeLimitMinutes: e.Quiz.TimeLimitMinutes,
		PassPercentage:   e.Quiz.PassPercentage,
		ScoringMethod:    entity.ScoringMethod(e.Quiz.ScoringMethod),
		MaxAttempts:      e.Quiz.MaxAttempts,
	}
}

// QuizEngineConfig переводит настройки в конфигурацию движка квалификации
func (e *EngineConfig) QuizEngineConfig() *quizengine.Config {
	return &quizengine.Config{
		Defaults:              e.QuizDefaults(),
		ShuffleOptions:        e.Quiz.ShuffleOptions,
		TimeLimitGraceSeconds: e.Quiz.TimeLimitGraceSeconds,
	}
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.log_level", "warn")
	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("engine.lifecycle.minimum_questions_per_category", 10)
	vip.SetDefault("engine.lifecycle.health_window_days", 30)
	vip.SetDefault("engine.allocator.default_release_mode", string(entity.ReleaseImmediate))
	vip.SetDefault("engine.allocator.default_delay_hours", 0)
	vip.SetDefault("engine.bonus.max_variations", bonuspipeline.DefaultMaxVariations)
	vip.SetDefault("engine.bonus.step_delay", "0s")
	vip.SetDefault("engine.bonus.job_timeout", "10m")
	vip.SetDefault("engine.quiz.questions_count", 10)
	vip.SetDefault("engine.quiz.time_limit_minutes", 15)
	vip.SetDefault("engine.quiz.pass_percentage", 70.0)
	vip.SetDefault("engine.quiz.scoring_method", string(entity.ScoringAverage))
	vip.SetDefault("engine.quiz.max_attempts", 3)
	vip.SetDefault("engine.quiz.shuffle_options", true)
	vip.SetDefault("engine.quiz.time_limit_grace_seconds", 5)

	vip.SetDefault("cron.practice_release_spec", "@every 5m")
}

// Load загружает конфигурацию из .env, файла и переменных окружения
func Load(configPath string) (*Config, error) {
	// .env не обязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Предупреждение: не удалось прочитать .env: %v", err)
	}

	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния
	setDefaults(vip)

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.issuer", "JWT_ISSUER")

	// Привязка для секции Email
	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	// Привязка для Server и Cron
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("cron.practice_release_spec", "CRON_PRACTICE_RELEASE_SPEC")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Не страшно, если файла нет: есть BindEnv и значения по умолчанию
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("Practice Release Cron: %s", cfg.Cron.PracticeReleaseSpec)
		log.Printf("-----------------------------------------")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры конфигурации
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Engine.Allocator.DefaultReleaseMode == string(entity.ReleaseDelayed) && cfg.Engine.Allocator.DefaultDelayHours <= 0 {
		return fmt.Errorf("invalid configuration: default_delay_hours must be positive for delayed release")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const baseConfig = `
database:
  host: localhost
  user: bible
  dbname: tournaments
jwt:
  secret: 0123456789abcdef0123
engine:
  bonus:
    tiers:
      - tier: 1
        practice_sessions: 3
        minimum_accuracy: 40
        streak_days: 1
        max_questions: 4
`

func TestLoad_DefaultsAndFile(t *testing.T) {
	// Arrange
	t.Setenv("GIN_MODE", "release")
	path := writeConfig(t, baseConfig)

	// Act
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 10, cfg.Engine.Lifecycle.MinimumQuestionsPerCategory)
	assert.Equal(t, "immediate", cfg.Engine.Allocator.DefaultReleaseMode)
	assert.Equal(t, 10*time.Minute, cfg.Engine.Bonus.JobTimeout)
	assert.True(t, cfg.Engine.Quiz.ShuffleOptions)
	assert.Equal(t, "@every 5m", cfg.Cron.PracticeReleaseSpec)

	bonus := cfg.Engine.BonusPipelineConfig()
	require.Len(t, bonus.Tiers, 1, "Таблица уровней берется из файла")
	assert.Equal(t, 4, bonus.Tiers[0].MaxQuestions)

	quiz := cfg.Engine.QuizDefaults()
	assert.Equal(t, 10, quiz.QuestionsCount)
	assert.Equal(t, 70.0, quiz.PassPercentage)

	engine := cfg.Engine.QuizEngineConfig()
	assert.Equal(t, quiz, engine.Defaults)
	assert.Equal(t, 5, engine.TimeLimitGraceSeconds)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load(writeConfig(t, baseConfig))

	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("GIN_MODE", "release")

	tests := []struct {
		name string
		body string
	}{
		{"нет секрета JWT", `
database: {host: localhost, user: bible, dbname: tournaments}
`},
		{"неизвестный режим возврата", baseConfig + `
  allocator:
    default_release_mode: never
`},
		{"отложенный возврат без часов", baseConfig + `
  allocator:
    default_release_mode: delayed
`},
		{"почта без ключа", baseConfig + `
email:
  enabled: true
  from: quiz@example.com
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

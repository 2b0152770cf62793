package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config агрегирует значения конфигурации из переменных окружения.
type Config struct {
	Twitch   TwitchConfig   `envPrefix:"TWITCH_"`
	Commands CommandsConfig
	Log      LogConfig      `envPrefix:"LOG_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Batch    BatchConfig    `envPrefix:"BATCH_"`
}

// TwitchConfig содержит учётные данные бота и канал, к которому он подключается.
type TwitchConfig struct {
	Username   string `env:"USERNAME,required,notEmpty"`
	OAuthToken string `env:"OAUTH_TOKEN,required,notEmpty"`
	Channel    string `env:"CHANNEL,required,notEmpty"`
	Addr       string `env:"IRC_ADDR" envDefault:"irc.chat.twitch.tv:6697"`
}

// CommandsConfig указывает на JSON-файл с определениями команд.
type CommandsConfig struct {
	File string `env:"COMMANDS_FILE,required,notEmpty"`
}

// LogConfig задаёт уровень и формат логов zap.
type LogConfig struct {
	Level    string `env:"LEVEL" envDefault:"info"`
	Encoding string `env:"ENCODING" envDefault:"console"`
}

// MetricsConfig задаёт адрес HTTP-сервера метрик; пустой адрес отключает сервер.
type MetricsConfig struct {
	Addr string `env:"ADDR"`
}

// PostgresConfig хранит параметры подключения к архиву чата. Архив включён, если задан Host.
type PostgresConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"5432"`
	DB       string `env:"DB"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
}

// Enabled сообщает, настроен ли архив.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// DSN собирает строку подключения для pgx/pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Password, p.Host, p.Port, p.DB)
}

// BatchConfig задаёт параметры батчинга и флашей при записи архива.
type BatchConfig struct {
	MaxBatch      int           `env:"MAX" envDefault:"100"`
	FlushEvery    time.Duration `env:"FLUSH_EVERY" envDefault:"1500ms"`
	ChanBuffer    int           `env:"CHAN_BUFFER" envDefault:"4096"`
	StatsLogEvery time.Duration `env:"STATS_LOG_EVERY" envDefault:"5m"`
	FlushTimeout  time.Duration `env:"FLUSH_TIMEOUT" envDefault:"5s"`
}

// Load читает переменные окружения и возвращает валидированную Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Twitch.Username = strings.TrimSpace(cfg.Twitch.Username)
	cfg.Twitch.OAuthToken = strings.TrimSpace(cfg.Twitch.OAuthToken)
	cfg.Twitch.Channel = normalizeChannel(cfg.Twitch.Channel)
	cfg.Commands.File = strings.TrimSpace(cfg.Commands.File)
	cfg.Postgres.Host = strings.TrimSpace(cfg.Postgres.Host)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Twitch.Username == "" {
		return fmt.Errorf("требуется TWITCH_USERNAME")
	}
	if c.Twitch.OAuthToken == "" {
		return fmt.Errorf("требуется TWITCH_OAUTH_TOKEN")
	}
	if c.Twitch.Channel == "" {
		return fmt.Errorf("требуется TWITCH_CHANNEL")
	}
	if c.Commands.File == "" {
		return fmt.Errorf("требуется COMMANDS_FILE")
	}

	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("LOG_ENCODING должен быть json или console")
	}

	if !c.Postgres.Enabled() {
		return nil
	}

	if c.Postgres.Port == "" {
		return fmt.Errorf("требуется POSTGRES_PORT")
	}
	if c.Postgres.DB == "" {
		return fmt.Errorf("требуется POSTGRES_DB")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("требуется POSTGRES_USER")
	}
	if c.Postgres.Password == "" {
		return fmt.Errorf("требуется POSTGRES_PASSWORD")
	}

	if c.Batch.MaxBatch <= 0 {
		return fmt.Errorf("Batch.MaxBatch должен быть больше нуля")
	}
	if c.Batch.FlushEvery <= 0 {
		return fmt.Errorf("Batch.FlushEvery должен быть больше нуля")
	}
	if c.Batch.ChanBuffer <= 0 {
		return fmt.Errorf("Batch.ChanBuffer должен быть больше нуля")
	}
	if c.Batch.StatsLogEvery <= 0 {
		return fmt.Errorf("Batch.StatsLogEvery должен быть больше нуля")
	}
	if c.Batch.FlushTimeout <= 0 {
		return fmt.Errorf("Batch.FlushTimeout должен быть больше нуля")
	}

	return nil
}

func normalizeChannel(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "#")
}

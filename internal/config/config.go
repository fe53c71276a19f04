package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL      string `yaml:"ttl"`
		SeedFile string `yaml:"seed_file"`
	} `yaml:"questions"`
	Game Game `yaml:"game"`
}

// Game holds the session rules. Zero values are replaced by defaults in Load.
type Game struct {
	QuestionsPerSession      int     `yaml:"questions_per_session"`
	QuestionTimeLimitSeconds float64 `yaml:"question_time_limit_seconds"`
	SummaryDisplaySeconds    float64 `yaml:"summary_display_seconds"`
	CountdownSeconds         float64 `yaml:"countdown_seconds"`
	MinParticipants          int     `yaml:"min_participants"`
	BasePoints               int     `yaml:"base_points"`
	SpeedBonusMaxPoints      int     `yaml:"speed_bonus_max_points"`
	PollInterval             string  `yaml:"poll_interval"`
}

// DefaultGame returns the rules used when the config leaves them out.
func DefaultGame() Game {
	return Game{
		QuestionsPerSession:      10,
		QuestionTimeLimitSeconds: 20,
		SummaryDisplaySeconds:    8,
		MinParticipants:          2,
		BasePoints:               10,
		SpeedBonusMaxPoints:      5,
		PollInterval:             "2s",
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.Game = cfg.Game.withDefaults()
	return cfg, nil
}

func (g Game) withDefaults() Game {
	def := DefaultGame()
	if g.QuestionsPerSession <= 0 {
		g.QuestionsPerSession = def.QuestionsPerSession
	}
	if g.QuestionTimeLimitSeconds <= 0 {
		g.QuestionTimeLimitSeconds = def.QuestionTimeLimitSeconds
	}
	if g.SummaryDisplaySeconds <= 0 {
		g.SummaryDisplaySeconds = def.SummaryDisplaySeconds
	}
	if g.CountdownSeconds < 0 {
		g.CountdownSeconds = 0
	}
	if g.MinParticipants <= 0 {
		g.MinParticipants = def.MinParticipants
	}
	if g.BasePoints <= 0 {
		g.BasePoints = def.BasePoints
	}
	if g.SpeedBonusMaxPoints <= 0 {
		g.SpeedBonusMaxPoints = def.SpeedBonusMaxPoints
	}
	if g.PollInterval == "" {
		g.PollInterval = def.PollInterval
	}
	return g
}

// Seconds converts a fractional seconds value from config to a duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every setting of the session server.
type Config struct {
	// Service
	ServiceName   string
	ServicePort   int
	AdvertiseHost string

	// Collaborators. Empty addresses switch the collaborator off.
	ConsulAddr string
	RedisURL   string
	NatsURL    string

	// Rooms
	RoomCapacity int
	MinPlayers   int

	Game Game

	LeaderboardSize int
}

// Game tunes one session's simulation.
type Game struct {
	Duration     time.Duration
	TickInterval time.Duration

	MaxCustomers       int
	MaxItems           int
	CustomerTimeout    time.Duration
	CustomerTimeoutMin time.Duration
	ItemLifetime       time.Duration

	CustomerSpawnMin time.Duration
	CustomerSpawnMax time.Duration
	ItemSpawnMin     time.Duration
	ItemSpawnMax     time.Duration

	BasePoints    int
	ExpiryPenalty int
	WrongPenalty  int

	// MoodDelay is how long a happy or angry face stays before the
	// customer is removed or calms down.
	MoodDelay time.Duration
}

// DefaultGame returns the tuning used when no environment overrides it.
func DefaultGame() Game {
	return Game{
		Duration:           90 * time.Second,
		TickInterval:       100 * time.Millisecond,
		MaxCustomers:       4,
		MaxItems:           8,
		CustomerTimeout:    15 * time.Second,
		CustomerTimeoutMin: 15 * time.Second,
		ItemLifetime:       8 * time.Second,
		CustomerSpawnMin:   2 * time.Second,
		CustomerSpawnMax:   4 * time.Second,
		ItemSpawnMin:       1 * time.Second,
		ItemSpawnMax:       2 * time.Second,
		BasePoints:         10,
		ExpiryPenalty:      5,
		WrongPenalty:       3,
		MoodDelay:          500 * time.Millisecond,
	}
}

// Load reads the configuration from environment variables, falling back to defaults.
func Load() (*Config, error) {
	def := DefaultGame()
	cfg := &Config{
		ServiceName:   getEnv("SERVICE_NAME", "orderup-session"),
		ServicePort:   getEnvAsInt("SERVICE_PORT", 8080),
		AdvertiseHost: getEnv("ADVERTISE_HOST", hostname()),

		ConsulAddr: getEnv("CONSUL_HTTP_ADDR", ""),
		RedisURL:   getEnv("REDIS_URL", ""),
		NatsURL:    getEnv("NATS_URL", ""),

		RoomCapacity: getEnvAsInt("ROOM_CAPACITY", 4),
		MinPlayers:   getEnvAsInt("MIN_PLAYERS", 2),

		Game: Game{
			Duration:           getEnvAsDuration("SESSION_DURATION", def.Duration),
			TickInterval:       getEnvAsDuration("TICK_INTERVAL", def.TickInterval),
			MaxCustomers:       getEnvAsInt("MAX_CUSTOMERS", def.MaxCustomers),
			MaxItems:           getEnvAsInt("MAX_ITEMS", def.MaxItems),
			CustomerTimeout:    getEnvAsDuration("CUSTOMER_TIMEOUT", def.CustomerTimeout),
			CustomerTimeoutMin: getEnvAsDuration("CUSTOMER_TIMEOUT_MIN", def.CustomerTimeoutMin),
			ItemLifetime:       getEnvAsDuration("ITEM_LIFETIME", def.ItemLifetime),
			CustomerSpawnMin:   getEnvAsDuration("CUSTOMER_SPAWN_MIN", def.CustomerSpawnMin),
			CustomerSpawnMax:   getEnvAsDuration("CUSTOMER_SPAWN_MAX", def.CustomerSpawnMax),
			ItemSpawnMin:       getEnvAsDuration("ITEM_SPAWN_MIN", def.ItemSpawnMin),
			ItemSpawnMax:       getEnvAsDuration("ITEM_SPAWN_MAX", def.ItemSpawnMax),
			BasePoints:         getEnvAsInt("BASE_POINTS", def.BasePoints),
			ExpiryPenalty:      getEnvAsInt("EXPIRY_PENALTY", def.ExpiryPenalty),
			WrongPenalty:       getEnvAsInt("WRONG_PENALTY", def.WrongPenalty),
			MoodDelay:          getEnvAsDuration("MOOD_DELAY", def.MoodDelay),
		},

		LeaderboardSize: getEnvAsInt("LEADERBOARD_SIZE", 10),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.ServicePort <= 0 || c.ServicePort > 65535 {
		return fmt.Errorf("invalid SERVICE_PORT %d", c.ServicePort)
	}
	if c.MinPlayers < 1 {
		return errors.New("MIN_PLAYERS must be at least 1")
	}
	if c.RoomCapacity < c.MinPlayers {
		return fmt.Errorf("ROOM_CAPACITY %d is below MIN_PLAYERS %d", c.RoomCapacity, c.MinPlayers)
	}
	if c.LeaderboardSize <= 0 {
		return errors.New("LEADERBOARD_SIZE must be positive")
	}
	return c.Game.Validate()
}

// Validate checks the simulation bands.
func (g Game) Validate() error {
	switch {
	case g.TickInterval <= 0:
		return errors.New("TICK_INTERVAL must be positive")
	case g.Duration < g.TickInterval:
		return errors.New("SESSION_DURATION must cover at least one tick")
	case g.MaxCustomers <= 0:
		return errors.New("MAX_CUSTOMERS must be positive")
	case g.MaxItems <= 0:
		return errors.New("MAX_ITEMS must be positive")
	case g.CustomerTimeout <= 0 || g.CustomerTimeoutMin <= 0:
		return errors.New("customer timeouts must be positive")
	case g.CustomerTimeoutMin > g.CustomerTimeout:
		return errors.New("CUSTOMER_TIMEOUT_MIN exceeds CUSTOMER_TIMEOUT")
	case g.ItemLifetime <= 0:
		return errors.New("ITEM_LIFETIME must be positive")
	case g.CustomerSpawnMin <= 0 || g.CustomerSpawnMin > g.CustomerSpawnMax:
		return errors.New("customer spawn band must satisfy 0 < min <= max")
	case g.ItemSpawnMin <= 0 || g.ItemSpawnMin > g.ItemSpawnMax:
		return errors.New("item spawn band must satisfy 0 < min <= max")
	case g.BasePoints < 0 || g.ExpiryPenalty < 0 || g.WrongPenalty < 0:
		return errors.New("points and penalties cannot be negative")
	case g.MoodDelay < 0:
		return errors.New("MOOD_DELAY cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultValue
}

func hostname() string {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

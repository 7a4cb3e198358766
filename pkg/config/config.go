package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr       string `env:"ADDR" envDefault:":8000"`
	MaxPlayers int    `env:"MAX_PLAYERS" envDefault:"4"`
	MaxLobbies int    `env:"MAX_LOBBIES" envDefault:"1"`
	Debug      bool   `env:"DEBUG" envDefault:"false"`

	BannedIDs    []string `env:"BANNED_IDS" envSeparator:","`
	WhitelistIDs []string `env:"WHITELIST_IDS" envSeparator:","`

	RequestLifetime time.Duration `env:"REQUEST_LIFETIME" envDefault:"30s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`

	JWTSecret         string `env:"JWT_SECRET"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	DatabaseEnabled bool   `env:"DATABASE_ENABLED" envDefault:"false"`
	DBHost          string `env:"DB_HOST" envDefault:"localhost"`
	DBPort          string `env:"DB_PORT" envDefault:"5432"`
	DBUser          string `env:"DB_USER" envDefault:"user"`
	DBPassword      string `env:"DB_PASSWORD" envDefault:"password"`
	DBName          string `env:"DB_NAME" envDefault:"dbname"`

	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"cardarena"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxPlayers < 1 {
		return fmt.Errorf("MAX_PLAYERS must be at least 1, got %d", c.MaxPlayers)
	}
	if c.MaxLobbies < 1 {
		return fmt.Errorf("MAX_LOBBIES must be at least 1, got %d", c.MaxLobbies)
	}
	if c.RequestLifetime <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("REQUEST_LIFETIME and SWEEP_INTERVAL must be positive")
	}
	return nil
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// Policy is the read side the session server consults on every join, plus
// the ban and whitelist edits made by operators. It is safe for concurrent use.
type Policy struct {
	maxPlayers int
	maxLobbies int
	debug      bool

	mu        sync.RWMutex
	banned    map[string]struct{}
	whitelist map[string]struct{}
}

func NewPolicy(cfg *Config) *Policy {
	p := &Policy{
		maxPlayers: cfg.MaxPlayers,
		maxLobbies: cfg.MaxLobbies,
		debug:      cfg.Debug,
		banned:     make(map[string]struct{}),
		whitelist:  make(map[string]struct{}),
	}
	for _, id := range cfg.BannedIDs {
		if id != "" {
			p.banned[id] = struct{}{}
		}
	}
	for _, id := range cfg.WhitelistIDs {
		if id != "" {
			p.whitelist[id] = struct{}{}
		}
	}
	return p
}

func (p *Policy) MaxPlayers() int { return p.maxPlayers }

func (p *Policy) MaxLobbies() int { return p.maxLobbies }

func (p *Policy) Debug() bool { return p.debug }

func (p *Policy) Banned(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.banned[id]
	return ok
}

// Whitelisted is true for everyone while the whitelist is empty.
func (p *Policy) Whitelisted(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.whitelist) == 0 {
		return true
	}
	_, ok := p.whitelist[id]
	return ok
}

func (p *Policy) Ban(id string) {
	p.mu.Lock()
	p.banned[id] = struct{}{}
	p.mu.Unlock()
}

func (p *Policy) Unban(id string) {
	p.mu.Lock()
	delete(p.banned, id)
	p.mu.Unlock()
}

func (p *Policy) Whitelist(id string) {
	p.mu.Lock()
	p.whitelist[id] = struct{}{}
	p.mu.Unlock()
}

package config

import (
	"errors"
	"fmt"
	"time"
)

// Professor admission modes.
const (
	ProfessorModeSingle = "single"
	ProfessorModeMulti  = "multi"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	MaxMessageBytes   int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	AllowedOrigins    []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MessagesPerMinute int      `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	EventBuffer       int      `mapstructure:"event_buffer" yaml:"event_buffer"`

	PollTimeout     time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	PollIdleTimeout time.Duration `mapstructure:"poll_idle_timeout" yaml:"poll_idle_timeout"`
	PollTokenSecret string        `mapstructure:"poll_token_secret" yaml:"poll_token_secret"`

	Room RoomConfig `mapstructure:"room" yaml:"room"`
}

// RoomConfig controls admission, history and cleanup of rooms.
type RoomConfig struct {
	ProfessorMode    string        `mapstructure:"professor_mode" yaml:"professor_mode"`
	MaxProfessors    int           `mapstructure:"max_professors" yaml:"max_professors"`
	MaxStudents      int           `mapstructure:"max_students" yaml:"max_students"`
	MaxParticipants  int           `mapstructure:"max_participants" yaml:"max_participants"`
	RequireProfessor bool          `mapstructure:"require_professor" yaml:"require_professor"`
	HistoryLimit     int           `mapstructure:"history_limit" yaml:"history_limit"`
	HistoryTrimTo    int           `mapstructure:"history_trim_to" yaml:"history_trim_to"`
	GracePeriod      time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
	InactiveTTL      time.Duration `mapstructure:"inactive_ttl" yaml:"inactive_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   1 << 20,
		AllowedOrigins:    []string{"*"},
		MessagesPerMinute: 6000,
		EventBuffer:       256,
		PollTimeout:       25 * time.Second,
		PollIdleTimeout:   60 * time.Second,
		Room:              DefaultRoom(),
	}
}

// DefaultRoom returns the permissive multi-professor room policy.
func DefaultRoom() RoomConfig {
	return RoomConfig{
		ProfessorMode:   ProfessorModeMulti,
		MaxProfessors:   3,
		MaxStudents:     100,
		HistoryLimit:    1000,
		HistoryTrimTo:   500,
		GracePeriod:     30 * time.Second,
		JanitorInterval: time.Hour,
		InactiveTTL:     24 * time.Hour,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
	if other.EventBuffer != 0 {
		c.EventBuffer = other.EventBuffer
	}
	if other.PollTimeout != 0 {
		c.PollTimeout = other.PollTimeout
	}
	if other.PollIdleTimeout != 0 {
		c.PollIdleTimeout = other.PollIdleTimeout
	}
	if other.PollTokenSecret != "" {
		c.PollTokenSecret = other.PollTokenSecret
	}
	if other.Room.ProfessorMode != "" {
		c.Room.ProfessorMode = other.Room.ProfessorMode
	}
	if other.Room.MaxProfessors != 0 {
		c.Room.MaxProfessors = other.Room.MaxProfessors
	}
	if other.Room.MaxStudents != 0 {
		c.Room.MaxStudents = other.Room.MaxStudents
	}
	if other.Room.MaxParticipants != 0 {
		c.Room.MaxParticipants = other.Room.MaxParticipants
	}
	if other.Room.RequireProfessor {
		c.Room.RequireProfessor = true
	}
	if other.Room.HistoryLimit != 0 {
		c.Room.HistoryLimit = other.Room.HistoryLimit
	}
	if other.Room.HistoryTrimTo != 0 {
		c.Room.HistoryTrimTo = other.Room.HistoryTrimTo
	}
	if other.Room.GracePeriod != 0 {
		c.Room.GracePeriod = other.Room.GracePeriod
	}
	if other.Room.JanitorInterval != 0 {
		c.Room.JanitorInterval = other.Room.JanitorInterval
	}
	if other.Room.InactiveTTL != 0 {
		c.Room.InactiveTTL = other.Room.InactiveTTL
	}
}

// Validate checks values that would otherwise break room invariants.
func (c *Config) Validate() error {
	r := c.Room
	switch r.ProfessorMode {
	case ProfessorModeSingle, ProfessorModeMulti:
	default:
		return fmt.Errorf("room.professor_mode must be %q or %q, got %q", ProfessorModeSingle, ProfessorModeMulti, r.ProfessorMode)
	}
	if r.MaxProfessors < 1 {
		return errors.New("room.max_professors must be at least 1")
	}
	if r.MaxStudents < 0 || r.MaxParticipants < 0 {
		return errors.New("room capacities must not be negative")
	}
	if r.HistoryLimit < 1 {
		return errors.New("room.history_limit must be at least 1")
	}
	if r.HistoryTrimTo < 0 || r.HistoryTrimTo > r.HistoryLimit {
		return fmt.Errorf("room.history_trim_to must be within [0, %d]", r.HistoryLimit)
	}
	if r.GracePeriod < 0 {
		return errors.New("room.grace_period must not be negative")
	}
	if c.PollIdleTimeout > 0 && c.PollTimeout >= c.PollIdleTimeout {
		return fmt.Errorf("poll_timeout (%s) must be shorter than poll_idle_timeout (%s)", c.PollTimeout, c.PollIdleTimeout)
	}
	if c.EventBuffer < 1 {
		return errors.New("event_buffer must be at least 1")
	}
	return nil
}

// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation tuning and host settings.
//
// IMPORTANT: The simulation never reads globals. A SimConfig value is built
// once at startup and handed to the match at construction; it is not
// modified afterwards.
package config

import (
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// Tier holds one value per strength tier (damage < MediumDamage, < HeavyDamage, rest).
type Tier struct {
	Light  float64
	Medium float64
	Heavy  float64
}

// SimConfig holds every frame constant and table used by the combat core.
// All durations are in simulation frames (60 per second).
type SimConfig struct {
	TickRate int // Fixed timestep rate in Hz

	// Input
	InputBufferSize    int // Ring capacity in frames (>= 15)
	MotionWindowFrames int // Default window a motion must complete within
	MaxMotionFrames    int // Hard cap on any motion window
	ChargeFrames       int // Frames a charge group must be held
	DoubleTapFrames    int // Window for 6-5-6 / 4-5-4

	// Parry
	ParryWindowFrames    int // Window opened by a fresh forward / down-forward
	RedParryWindowFrames int // Window opened during blockstun
	ParryAdvantageFrames int // Defender acts this many frames before attacker
	ParryFreezeFrames    int // Freeze applied to both sides on a parry

	// Guard
	ChipPercent       int  // Chip damage as a percent of base damage
	BlockstunPercent  int  // Blockstun as a percent of hitstun
	MediumDamage      int  // Damage threshold for the medium tier
	HeavyDamage       int  // Damage threshold for the heavy tier
	HitFreeze         Tier // Hitfreeze on a clean hit
	BlockFreeze       Tier // Hitfreeze on a block
	Pushback          Tier // Pushback distance in pixels
	PushbackFrames    int  // Frames pushback is spread over
	HitFlashFrames    int
	CounterHitBonus   int // Extra hitstun on a counter hit
	CrouchDamageBonus int // Percent bonus damage against crouching defenders

	// Combo
	ComboTimeoutFrames int   // Gap after which a combo ends
	ComboScaling       []int // Percent per hit index, clamped to the last entry

	// State machine
	SpecialCooldownFrames int
	FacingLockFrames      int
	StateTimeouts         map[string]int // Keyed by state kind name; 0 means unlimited
	DefaultStateTimeout   int

	// Throws
	ThrowRange          float64
	ThrowTechFrames     int // Frames the defender has to tech after being grabbed
	ThrowRecoveryFrames int // Thrower's recovery once the throw lands
	ThrowDamage         int
	KnockdownFrames     int
	WakeupInvincible    int

	// Stun
	DizzyFrames       int
	StunRecoveryDelay int // Frames without being hit before the stun meter decays
	StunRecoveryRate  int // Stun points recovered per frame once decaying

	// Physics
	Gravity        float64
	JumpVelocity   float64
	JumpSpeedX     float64
	DashSpeed      float64
	StageLeft      float64
	StageRight     float64
	StageFloor     float64
	PushboxWidth   float64 // Half width used to separate the two characters
	MaxProjectiles int     // Per player
}

// DefaultSim returns the default simulation tuning.
// This is the SINGLE SOURCE OF TRUTH for frame data constants.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate: 60,

		InputBufferSize:    15,
		MotionWindowFrames: 15,
		MaxMotionFrames:    20,
		ChargeFrames:       45,
		DoubleTapFrames:    10,

		ParryWindowFrames:    7,
		RedParryWindowFrames: 3,
		ParryAdvantageFrames: 8,
		ParryFreezeFrames:    16,

		ChipPercent:       10,
		BlockstunPercent:  70,
		MediumDamage:      20,
		HeavyDamage:       35,
		HitFreeze:         Tier{Light: 8, Medium: 10, Heavy: 12},
		BlockFreeze:       Tier{Light: 6, Medium: 8, Heavy: 10},
		Pushback:          Tier{Light: 8, Medium: 14, Heavy: 20},
		PushbackFrames:    6,
		HitFlashFrames:    1,
		CounterHitBonus:   2,
		CrouchDamageBonus: 0,

		ComboTimeoutFrames: 120,
		ComboScaling:       []int{100, 90, 80, 70, 60, 50, 40, 30, 20, 10},

		SpecialCooldownFrames: 15,
		FacingLockFrames:      3,
		StateTimeouts: map[string]int{
			"standing":       0,
			"walking":        0,
			"crouching":      0,
			"jump_startup":   10,
			"airborne":       60,
			"landing":        10,
			"dash":           30,
			"attacking":      90,
			"hitstun":        120,
			"blockstun":      60,
			"parry_recovery": 60,
			"throwing":       60,
			"thrown":         90,
			"knockdown":      120,
			"dizzy":          240,
		},
		DefaultStateTimeout: 60,

		ThrowRange:          40,
		ThrowTechFrames:     5,
		ThrowRecoveryFrames: 18,
		ThrowDamage:         22,
		KnockdownFrames:     40,
		WakeupInvincible:    4,

		DizzyFrames:       180,
		StunRecoveryDelay: 60,
		StunRecoveryRate:  1,

		Gravity:        0.8,
		JumpVelocity:   -16,
		JumpSpeedX:     3.5,
		DashSpeed:      6,
		StageLeft:      80,
		StageRight:     816,
		StageFloor:     344,
		PushboxWidth:   24,
		MaxProjectiles: 1,
	}
}

// SimFromEnv returns the simulation configuration with environment overrides.
// Only knobs that are safe to tune without touching character data are exposed.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if v := getEnvInt("SIM_TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("SIM_INPUT_BUFFER", 0); v >= 15 {
		cfg.InputBufferSize = v
	}
	if v := getEnvInt("SIM_CHARGE_FRAMES", 0); v > 0 {
		cfg.ChargeFrames = v
	}
	if v := getEnvInt("SIM_COMBO_TIMEOUT", 0); v > 0 {
		cfg.ComboTimeoutFrames = v
	}
	if v := getEnvFloat("SIM_GRAVITY", 0); v > 0 {
		cfg.Gravity = v
	}

	return cfg
}

// Clone returns a deep copy so callers can derive variants without sharing tables.
func (c SimConfig) Clone() SimConfig {
	out := c
	out.ComboScaling = append([]int(nil), c.ComboScaling...)
	out.StateTimeouts = make(map[string]int, len(c.StateTimeouts))
	for k, v := range c.StateTimeouts {
		out.StateTimeouts[k] = v
	}
	return out
}

// StateTimeout returns the max frame count for a state kind name.
func (c SimConfig) StateTimeout(kind string) int {
	if v, ok := c.StateTimeouts[kind]; ok {
		return v
	}
	return c.DefaultStateTimeout
}

// TierFor picks the tier value for a damage amount.
func (c SimConfig) TierFor(t Tier, damage int) float64 {
	switch {
	case damage >= c.HeavyDamage:
		return t.Heavy
	case damage >= c.MediumDamage:
		return t.Medium
	default:
		return t.Light
	}
}

// =============================================================================
// ROUND CONFIGURATION
// =============================================================================

// RoundConfig holds round flow settings.
type RoundConfig struct {
	TimerStart      int // In-game seconds
	FramesPerSecond int // Frames per in-game second (arcade timer runs fast)
	RoundsToWin     int
	IntroFrames     int // Freeze before "FIGHT"
	RoundEndFrames  int // Hold after KO / time over
	MatchEndFrames  int
}

// DefaultRound returns the default round configuration.
func DefaultRound() RoundConfig {
	return RoundConfig{
		TimerStart:      99,
		FramesPerSecond: 55,
		RoundsToWin:     2,
		IntroFrames:     90,
		RoundEndFrames:  120,
		MatchEndFrames:  180,
	}
}

// RoundFromEnv returns round configuration with environment variable overrides.
func RoundFromEnv() RoundConfig {
	cfg := DefaultRound()

	if v := getEnvInt("ROUND_TIMER", 0); v > 0 {
		cfg.TimerStart = v
	}
	if v := getEnvInt("ROUNDS_TO_WIN", 0); v > 0 {
		cfg.RoundsToWin = v
	}
	if v := getEnvInt("ROUND_INTRO_FRAMES", -1); v >= 0 {
		cfg.IntroFrames = v
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	EventLogPath   string

	// Per-IP request rate for the HTTP API
	RequestsPerSecond float64
	Burst             int

	// Shared secret for control sessions. Empty disables authentication
	// on the input and reset routes.
	ControlToken string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		EventLogPath:   "events.jsonl",

		// Input over HTTP arrives at up to one request per frame
		RequestsPerSecond: 120,
		Burst:             240,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if path, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = path
	}
	if v := getEnvFloat("RATE_LIMIT_RPS", 0); v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v := getEnvInt("RATE_LIMIT_BURST", 0); v > 0 {
		cfg.Burst = v
	}
	cfg.ControlToken = os.Getenv("CONTROL_TOKEN")

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds debug server settings.
type ObservabilityConfig struct {
	Enabled   bool
	DebugAddr string // Bound to localhost only
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:   true,
		DebugAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability configuration with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}

	return cfg
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string // logrus level name
	Format string // "json" or "text"
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info", Format: "text"}
}

// LogFromEnv returns logging configuration with environment overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Level = lvl
	}
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		cfg.Format = strings.ToLower(f)
	}

	return cfg
}

// =============================================================================
// CHARACTER DATA CONFIGURATION
// =============================================================================

// DataConfig controls where character definitions come from.
type DataConfig struct {
	CharacterDir string // Optional directory overriding the embedded definitions
	Watch        bool   // Reload definitions when files in CharacterDir change
	Player1      string
	Player2      string
}

// DefaultData returns the default character data configuration.
func DefaultData() DataConfig {
	return DataConfig{Player1: "ryu", Player2: "ken"}
}

// DataFromEnv returns character data configuration with environment overrides.
func DataFromEnv() DataConfig {
	cfg := DefaultData()

	cfg.CharacterDir = os.Getenv("CHARACTER_DIR")
	cfg.Watch = os.Getenv("WATCH_CHARACTERS") == "true"
	if p := os.Getenv("PLAYER1_CHARACTER"); p != "" {
		cfg.Player1 = strings.ToLower(p)
	}
	if p := os.Getenv("PLAYER2_CHARACTER"); p != "" {
		cfg.Player2 = strings.ToLower(p)
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim           SimConfig
	Round         RoundConfig
	Server        ServerConfig
	Observability ObservabilityConfig
	Log           LogConfig
	Data          DataConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:           SimFromEnv(),
		Round:         RoundFromEnv(),
		Server:        ServerFromEnv(),
		Observability: ObservabilityFromEnv(),
		Log:           LogFromEnv(),
		Data:          DataFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

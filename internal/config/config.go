package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Recognizer backends selectable at startup.
const (
	RecognizerWebSpeech = "webspeech"
	RecognizerDeepgram  = "deepgram"
)

// Config stores runtime configuration for the interview app.
type Config struct {
	Session    SessionConfig
	Templates  TemplatesConfig
	Recognizer RecognizerConfig
	Deepgram   DeepgramConfig
	Audio      AudioConfig
}

type SessionConfig struct {
	AnswerSeconds int
	TickInterval  time.Duration
	FlushWait     time.Duration
	ShareOrigin   string
	SharePath     string
}

type TemplatesConfig struct {
	Dir string
}

type RecognizerConfig struct {
	Backend string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Session: SessionConfig{
			AnswerSeconds: envOrDefaultInt("PREPCAM_ANSWER_SECONDS", 30),
			TickInterval:  time.Duration(envOrDefaultInt("PREPCAM_TICK_INTERVAL_MS", 1000)) * time.Millisecond,
			FlushWait:     time.Duration(envOrDefaultInt("PREPCAM_FLUSH_WAIT_MS", 2000)) * time.Millisecond,
			ShareOrigin:   envOrDefault("PREPCAM_SHARE_ORIGIN", "http://localhost:34115"),
			SharePath:     envOrDefault("PREPCAM_SHARE_PATH", "/"),
		},
		Templates: TemplatesConfig{
			Dir: strings.TrimSpace(os.Getenv("PREPCAM_TEMPLATES_DIR")),
		},
		Recognizer: RecognizerConfig{
			Backend: envOrDefault("PREPCAM_RECOGNIZER", RecognizerWebSpeech),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("PREPCAM_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("PREPCAM_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("PREPCAM_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("PREPCAM_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("PREPCAM_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("PREPCAM_AUDIO_CHUNK_SIZE", 4096),
		},
	}

	if cfg.Session.AnswerSeconds <= 0 {
		cfg.Session.AnswerSeconds = 30
	}
	if cfg.Session.TickInterval <= 0 {
		cfg.Session.TickInterval = time.Second
	}
	if cfg.Session.FlushWait <= 0 {
		cfg.Session.FlushWait = 2 * time.Second
	}
	if cfg.Recognizer.Backend != RecognizerDeepgram {
		cfg.Recognizer.Backend = RecognizerWebSpeech
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

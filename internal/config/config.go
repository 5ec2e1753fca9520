package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFeeds are the RSS feeds swept by the news collector when NEWS_FEEDS is unset.
var DefaultFeeds = []string{
	"https://feeds.bbci.co.uk/news/world/rss.xml",
	"https://www.aljazeera.com/xml/rss/all.xml",
	"https://www.npr.org/rss/rss.php?id=1004",
	"https://www.reutersagency.com/feed/?best-topics=world",
}

// Config holds the full runtime configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Queue         QueueConfig
	Scan          ScanConfig
	LLM           LLMConfig
	Gemini        GeminiConfig
	Transcription TranscriptionConfig
	News          NewsConfig
	Music         MusicConfig
	Audio         AudioConfig
	Fingerprints  string
	LogLevel      string
	LogFormat     string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port          string
	GinMode       string
	CORSOrigins   []string
	AdminPassword string
	JWTSecret     string
	DocsDir       string
	RunWorkers    bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// QueueConfig holds job queue settings
type QueueConfig struct {
	Name         string
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	LeaseTimeout time.Duration
}

// ScanConfig holds scan submission and pipeline settings
type ScanConfig struct {
	UploadDir     string
	Keyframes     int
	PrecreateRows bool
	MaxWait       time.Duration
}

// LLMConfig holds settings for the OpenAI-compatible chat completion API
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiConfig holds settings for the multimodal and speech models
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	VisionModel string
	TTSModel    string
	Voice       string
}

// TranscriptionConfig selects and configures the speech-to-text backend
type TranscriptionConfig struct {
	Mode     string
	Command  string
	Model    string
	APIURL   string
	APIKey   string
	APIModel string
}

// NewsConfig holds the ingestion loop settings
type NewsConfig struct {
	Feeds          []string
	SweepInterval  time.Duration
	EntryDelay     time.Duration
	EntriesPerFeed int
	LockFile       string
	UserAgent      string
}

// MusicConfig holds the song generation API settings
type MusicConfig struct {
	APIKey       string
	BaseURL      string
	CallbackURL  string
	PollTimeout  time.Duration
	PollInterval time.Duration
}

// AudioConfig holds local audio tooling settings
type AudioConfig struct {
	SongsDir    string
	BeatPath    string
	DemucsModel string
	StemsDir    string
}

// Load builds the configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			GinMode:       getEnv("GIN_MODE", ""),
			CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"*"}),
			AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
			JWTSecret:     getEnv("JWT_SECRET", ""),
			DocsDir:       getEnv("DOCS_DIR", "docs"),
			RunWorkers:    getEnvBool("RUN_WORKERS", true),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "truthscan"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		Queue: QueueConfig{
			Name:         getEnv("QUEUE_NAME", "analysis_queue"),
			Workers:      getEnvInt("QUEUE_WORKERS", 2),
			PollInterval: getEnvDuration("QUEUE_POLL_INTERVAL", time.Second),
			MaxAttempts:  getEnvInt("QUEUE_MAX_ATTEMPTS", 1),
			LeaseTimeout: getEnvDuration("QUEUE_LEASE_TIMEOUT", 15*time.Minute),
		},
		Scan: ScanConfig{
			UploadDir:     getEnv("UPLOAD_DIR", os.TempDir()),
			Keyframes:     getEnvInt("SCAN_KEYFRAMES", 5),
			PrecreateRows: getEnvBool("SCAN_PRECREATE_ROWS", true),
			MaxWait:       getEnvDuration("SCAN_MAX_WAIT", 30*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("GROQ_API_KEY", ""),
			BaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1/chat/completions"),
			Model:   getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
			Timeout: getEnvDuration("GROQ_TIMEOUT", 60*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			BaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			VisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash-preview-05-20"),
			TTSModel:    getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
			Voice:       getEnv("GEMINI_VOICE", "Kore"),
		},
		Transcription: TranscriptionConfig{
			Mode:     getEnv("TRANSCRIBER", "whisperx"),
			Command:  getEnv("WHISPERX_COMMAND", "whisperx"),
			Model:    getEnv("WHISPER_MODEL", "base"),
			APIURL:   getEnv("TRANSCRIPTION_API_URL", "https://api.groq.com/openai/v1/audio/transcriptions"),
			APIKey:   getEnv("TRANSCRIPTION_API_KEY", getEnv("GROQ_API_KEY", "")),
			APIModel: getEnv("TRANSCRIPTION_API_MODEL", "whisper-large-v3"),
		},
		News: NewsConfig{
			Feeds:          getEnvList("NEWS_FEEDS", DefaultFeeds),
			SweepInterval:  getEnvDuration("NEWS_SWEEP_INTERVAL", 10*time.Minute),
			EntryDelay:     getEnvDuration("NEWS_ENTRY_DELAY", 2*time.Second),
			EntriesPerFeed: getEnvInt("NEWS_ENTRIES_PER_FEED", 4),
			LockFile:       getEnv("NEWS_LOCK_FILE", "/tmp/truthscan-collector.lock"),
			UserAgent:      getEnv("NEWS_USER_AGENT", "TruthScan-NewsCollector/1.0"),
		},
		Music: MusicConfig{
			APIKey:       getEnv("SUNO_API_KEY", ""),
			BaseURL:      getEnv("SUNO_BASE_URL", "https://api.sunoapi.org/api/v1"),
			CallbackURL:  getEnv("SUNO_CALLBACK_URL", "https://example.com/callback"),
			PollTimeout:  getEnvDuration("SUNO_POLL_TIMEOUT", 90*time.Second),
			PollInterval: getEnvDuration("SUNO_POLL_INTERVAL", 2*time.Second),
		},
		Audio: AudioConfig{
			SongsDir:    getEnv("SONGS_DIR", "tmp/songs"),
			BeatPath:    getEnv("BEAT_PATH", "assets/beat.mp3"),
			DemucsModel: getEnv("DEMUCS_MODEL", "mdx_extra_q"),
			StemsDir:    getEnv("STEMS_DIR", "tmp/stems"),
		},
		Fingerprints: getEnv("AUTHOR_FINGERPRINTS", "data/author_fingerprints.yaml"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", ""),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}

package services

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URI  string
	Name string
	Seed bool
}

type AIConfig struct {
	Provider     string
	OpenAIKey    string
	OpenAIModel  string
	OpenAIBase   string
	GeminiAPIKey string
	GeminiModel  string
	RequireAI    bool
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins string
}

type UploadConfig struct {
	Dir     string
	MaxSize int64
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("database.uri", "")
	viper.SetDefault("database.name", "crisp")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.openai_api_key", "")
	viper.SetDefault("ai.openai_model", "gpt-4o-mini")
	viper.SetDefault("ai.openai_base_url", "")
	viper.SetDefault("ai.gemini_api_key", "")
	viper.SetDefault("ai.gemini_model", "gemini-2.5-flash")
	viper.SetDefault("ai.require_ai", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("cors.allowed_origins", "http://localhost:3000")
	viper.SetDefault("upload.dir", "uploads")
	viper.SetDefault("upload.max_size", 10*1024*1024)

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.uri", "MONGODB_URI")
	viper.BindEnv("database.name", "MONGODB_DB")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("ai.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("ai.openai_model", "OPENAI_MODEL")
	viper.BindEnv("ai.openai_base_url", "OPENAI_BASE_URL")
	viper.BindEnv("ai.gemini_api_key", "GEMINI_API_KEY")
	viper.BindEnv("ai.gemini_model", "GEMINI_MODEL")
	viper.BindEnv("ai.require_ai", "REQUIRE_AI")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("cors.allowed_origins", "FRONTEND_ORIGIN")
	viper.BindEnv("upload.dir", "UPLOAD_DIR")
	viper.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URI:  viper.GetString("database.uri"),
			Name: viper.GetString("database.name"),
			Seed: viper.GetBool("database.seed"),
		},
		AI: AIConfig{
			Provider:     strings.ToLower(viper.GetString("ai.provider")),
			OpenAIKey:    viper.GetString("ai.openai_api_key"),
			OpenAIModel:  viper.GetString("ai.openai_model"),
			OpenAIBase:   viper.GetString("ai.openai_base_url"),
			GeminiAPIKey: viper.GetString("ai.gemini_api_key"),
			GeminiModel:  viper.GetString("ai.gemini_model"),
			RequireAI:    ParseRequireAI(viper.GetString("ai.require_ai")),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetString("cors.allowed_origins"),
		},
		Upload: UploadConfig{
			Dir:     viper.GetString("upload.dir"),
			MaxSize: viper.GetInt64("upload.max_size"),
		},
	}
}

// ParseRequireAI interprets the strict-mode flag. Accepts "1" and anything
// starting with "t" or "y", case-insensitive.
func ParseRequireAI(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	return v == "1" || strings.HasPrefix(v, "t") || strings.HasPrefix(v, "y")
}

// SplitOrigins parses the comma-separated allowed origins list.
func SplitOrigins(allowedOriginsStr string) []string {
	if allowedOriginsStr == "" {
		return nil
	}
	parts := strings.Split(allowedOriginsStr, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

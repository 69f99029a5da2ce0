package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	VoiceProviderSimulated = "simulated"
	VoiceProviderVapi      = "vapi"
)

type Config struct {
	Server struct {
		Port           string
		LogLevel       string
		AllowedOrigins []string
	}
	Voice struct {
		Provider string
	}
	Vapi struct {
		APIKey        string
		BaseURL       string
		VoiceProvider string
		VoiceID       string
		ModelProvider string
		Model         string
	}
	Gemini struct {
		APIKey      string
		Model       string
		Temperature float32
	}
	Simulated struct {
		WordsPerSecond float64
	}
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", "*")

	v.SetDefault("voice.provider", VoiceProviderSimulated)

	v.SetDefault("vapi.base_url", "https://api.vapi.ai")
	v.SetDefault("vapi.voice_provider", "11labs")
	v.SetDefault("vapi.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("vapi.model_provider", "openai")
	v.SetDefault("vapi.model", "gpt-4o-mini")

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.7)

	v.SetDefault("simulated.words_per_second", 2.5)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	v.BindEnv("voice.provider", "VOICE_PROVIDER")

	v.BindEnv("vapi.api_key", "VAPI_API_KEY")
	v.BindEnv("vapi.base_url", "VAPI_BASE_URL")
	v.BindEnv("vapi.voice_provider", "VAPI_VOICE_PROVIDER")
	v.BindEnv("vapi.voice_id", "VAPI_VOICE_ID")
	v.BindEnv("vapi.model_provider", "VAPI_MODEL_PROVIDER")
	v.BindEnv("vapi.model", "VAPI_MODEL")

	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("gemini.model", "GEMINI_MODEL")
	v.BindEnv("gemini.temperature", "GEMINI_TEMPERATURE")

	v.BindEnv("simulated.words_per_second", "SIMULATED_WORDS_PER_SECOND")

	var c Config
	c.Server.Port = fmt.Sprint(v.Get("server.port"))
	c.Server.LogLevel = strings.ToLower(v.GetString("server.log_level"))
	c.Server.AllowedOrigins = splitList(v.GetString("server.allowed_origins"))

	c.Voice.Provider = strings.ToLower(v.GetString("voice.provider"))

	c.Vapi.APIKey = v.GetString("vapi.api_key")
	c.Vapi.BaseURL = strings.TrimRight(v.GetString("vapi.base_url"), "/")
	c.Vapi.VoiceProvider = v.GetString("vapi.voice_provider")
	c.Vapi.VoiceID = v.GetString("vapi.voice_id")
	c.Vapi.ModelProvider = v.GetString("vapi.model_provider")
	c.Vapi.Model = v.GetString("vapi.model")

	c.Gemini.APIKey = v.GetString("gemini.api_key")
	c.Gemini.Model = v.GetString("gemini.model")
	c.Gemini.Temperature = float32(v.GetFloat64("gemini.temperature"))

	c.Simulated.WordsPerSecond = v.GetFloat64("simulated.words_per_second")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the server cannot start with
func (c Config) Validate() error {
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}

	switch c.Voice.Provider {
	case VoiceProviderSimulated:
		if c.Simulated.WordsPerSecond <= 0 {
			return fmt.Errorf("simulated words per second must be positive, got %v", c.Simulated.WordsPerSecond)
		}
	case VoiceProviderVapi:
		if c.Vapi.APIKey == "" {
			return fmt.Errorf("VAPI_API_KEY is required when the voice provider is vapi")
		}
	default:
		return fmt.Errorf("unknown voice provider %q", c.Voice.Provider)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

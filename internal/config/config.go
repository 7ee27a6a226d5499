package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
		BaseURL  string
	}
	Voice struct {
		TokenSecret string
		TokenExpMin int
	}
	Gemini struct {
		APIKey    string
		ChatModel string
		FastModel string
		TTSModel  string
	}
	Diagnosis struct {
		BaseURL     string
		APIKey      string
		TimeoutSecs int
		MaxAttempts int
	}
	PDF struct {
		ServiceURL  string
		OutputDir   string
		TimeoutSecs int
	}
	Case struct {
		DBPath string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("voice.token_exp_min", 120)

	v.SetDefault("gemini.chat_model", "gemini-2.0-flash")
	v.SetDefault("gemini.fast_model", "gemini-2.0-flash-lite")
	v.SetDefault("gemini.tts_model", "gemini-2.5-flash-preview-tts")

	v.SetDefault("diagnosis.timeout_secs", 45)
	v.SetDefault("diagnosis.max_attempts", 3)

	v.SetDefault("pdf.output_dir", "./plans")
	v.SetDefault("pdf.timeout_secs", 30)

	v.SetDefault("case.db_path", "./khetsaathi.db")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.base_url", "SERVER_BASE_URL")

	v.BindEnv("voice.token_secret", "VOICE_TOKEN_SECRET")
	v.BindEnv("voice.token_exp_min", "VOICE_TOKEN_EXP_MIN")

	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("gemini.chat_model", "GEMINI_CHAT_MODEL")
	v.BindEnv("gemini.fast_model", "GEMINI_FAST_MODEL")
	v.BindEnv("gemini.tts_model", "GEMINI_TTS_MODEL")

	v.BindEnv("diagnosis.base_url", "DIAGNOSIS_API_URL")
	v.BindEnv("diagnosis.api_key", "DIAGNOSIS_API_KEY")
	v.BindEnv("diagnosis.timeout_secs", "DIAGNOSIS_TIMEOUT_SECS")
	v.BindEnv("diagnosis.max_attempts", "DIAGNOSIS_MAX_ATTEMPTS")

	v.BindEnv("pdf.service_url", "PDF_SERVICE_URL")
	v.BindEnv("pdf.output_dir", "PDF_OUTPUT_DIR")
	v.BindEnv("pdf.timeout_secs", "PDF_TIMEOUT_SECS")

	v.BindEnv("case.db_path", "CASE_DB_PATH")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.BaseURL = strings.TrimRight(v.GetString("server.base_url"), "/")

	c.Voice.TokenSecret = v.GetString("voice.token_secret")
	c.Voice.TokenExpMin = v.GetInt("voice.token_exp_min")

	c.Gemini.APIKey = v.GetString("gemini.api_key")
	c.Gemini.ChatModel = v.GetString("gemini.chat_model")
	c.Gemini.FastModel = v.GetString("gemini.fast_model")
	c.Gemini.TTSModel = v.GetString("gemini.tts_model")

	c.Diagnosis.BaseURL = strings.TrimRight(v.GetString("diagnosis.base_url"), "/")
	c.Diagnosis.APIKey = v.GetString("diagnosis.api_key")
	c.Diagnosis.TimeoutSecs = v.GetInt("diagnosis.timeout_secs")
	c.Diagnosis.MaxAttempts = v.GetInt("diagnosis.max_attempts")

	c.PDF.ServiceURL = strings.TrimRight(v.GetString("pdf.service_url"), "/")
	c.PDF.OutputDir = v.GetString("pdf.output_dir")
	c.PDF.TimeoutSecs = v.GetInt("pdf.timeout_secs")

	c.Case.DBPath = v.GetString("case.db_path")

	log.Printf("config loaded: port=%s chat_model=%s diagnosis_url=%s", c.Server.Port, c.Gemini.ChatModel, c.Diagnosis.BaseURL)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }

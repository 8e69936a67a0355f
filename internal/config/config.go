package config

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs. Values come from flags with
// environment fallbacks; a .env file is loaded when present.
type Config struct {
	HTTPAddress string

	AssemblyAIKey     string
	CerebrasKey       string
	CerebrasModelID   string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	DeepgramKey       string
	DeepgramModelID   string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseTable          string
	SupabaseBucket         string

	TwilioAccountSID string
	TwilioAuthToken  string

	ICEServersJSON string
	AuthPassword   string
}

// Load reads flags and environment variables and returns Config with sane
// defaults. Missing provider keys degrade features; only warnings are logged.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	var cfg Config
	flag.StringVar(&cfg.HTTPAddress, "http-address", getEnv("HTTP_ADDRESS", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.AssemblyAIKey, "assemblyai-key", os.Getenv("ASSEMBLYAI_API_KEY"), "AssemblyAI API key")
	flag.StringVar(&cfg.CerebrasKey, "cerebras-key", os.Getenv("CEREBRAS_API_KEY"), "Cerebras API key")
	flag.StringVar(&cfg.CerebrasModelID, "cerebras-model", getEnv("CEREBRAS_MODEL_ID", "gpt-oss-120b"), "Cerebras model ID")
	flag.StringVar(&cfg.ElevenLabsKey, "elevenlabs-key", os.Getenv("ELEVENLABS_API_KEY"), "ElevenLabs API key")
	flag.StringVar(&cfg.ElevenLabsVoiceID, "elevenlabs-voice", os.Getenv("ELEVENLABS_VOICE_ID"), "ElevenLabs voice ID")
	flag.StringVar(&cfg.DeepgramKey, "deepgram-key", os.Getenv("DEEPGRAM_API_KEY"), "Deepgram API key")
	flag.StringVar(&cfg.DeepgramModelID, "deepgram-model", getEnv("DEEPGRAM_MODEL_ID", "aura-2-thalia-en"), "Deepgram speak model")
	flag.StringVar(&cfg.SupabaseURL, "supabase-url", os.Getenv("SUPABASE_URL"), "Supabase URL")
	flag.StringVar(&cfg.SupabaseServiceRoleKey, "supabase-key", os.Getenv("SUPABASE_SERVICE_ROLE_KEY"), "Supabase service role key")
	flag.StringVar(&cfg.SupabaseTable, "supabase-table", getEnv("SUPABASE_TABLE", "appointments"), "Supabase bookings table")
	flag.StringVar(&cfg.SupabaseBucket, "supabase-bucket", getEnv("SUPABASE_BUCKET", "voice-recording"), "Supabase recordings bucket")
	flag.StringVar(&cfg.TwilioAccountSID, "twilio-sid", os.Getenv("TWILIO_ACCOUNT_SID"), "Twilio account SID")
	flag.StringVar(&cfg.TwilioAuthToken, "twilio-token", os.Getenv("TWILIO_AUTH_TOKEN"), "Twilio auth token")
	flag.StringVar(&cfg.ICEServersJSON, "ice-servers", os.Getenv("ICE_SERVERS_JSON"), "ICE servers as JSON array")
	flag.StringVar(&cfg.AuthPassword, "auth-password", os.Getenv("AUTH_PASSWORD"), "Signaling auth password")
	flag.Parse()

	warnIfEmpty(cfg.AssemblyAIKey, "ASSEMBLYAI_API_KEY", "transcription")
	warnIfEmpty(cfg.CerebrasKey, "CEREBRAS_API_KEY", "dialog replies")
	warnIfEmpty(cfg.ElevenLabsKey, "ELEVENLABS_API_KEY", "primary TTS")
	warnIfEmpty(cfg.DeepgramKey, "DEEPGRAM_API_KEY", "fallback TTS")
	warnIfEmpty(cfg.SupabaseURL, "SUPABASE_URL", "booking persistence")

	log.Printf("config: HTTP_ADDRESS=%s", cfg.HTTPAddress)
	return cfg
}

func warnIfEmpty(value, name, feature string) {
	if value == "" {
		log.Printf("Warning: %s not set - %s will not work", name, feature)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

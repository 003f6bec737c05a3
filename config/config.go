package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/leoportal/leo-portal-api/logging"
	"github.com/leoportal/leo-portal-api/models"
)

// DefaultCheckInRadiusMeters is used for events that set a location but no radius
const DefaultCheckInRadiusMeters = 50.0

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Env          string

	RequestTimeout time.Duration

	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	CheckInSecret       string
	CheckInRadiusMeters float64

	OpenAIAPIKey string
	OpenAIModel  string

	StripeSecretKey string
	DuesAmountCents int64
	DuesCurrency    string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadPreset string

	SheetsSpreadsheetID   string
	GoogleCredentialsFile string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	logger, err := logging.New(env)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: os.Getenv("DB_NAME"),
		BaseURL:      os.Getenv("BASE_URL"),
		Port:         getEnv("PORT", "8080"),
		Env:          env,

		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),

		SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:      getEnv("EMAIL_FROM", "no-reply@leoportal.org"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "LEO Club Portal"),

		CheckInSecret:       os.Getenv("CHECKIN_SECRET"),
		CheckInRadiusMeters: getFloat("CHECKIN_RADIUS_METERS", DefaultCheckInRadiusMeters),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		DuesAmountCents: int64(getFloat("DUES_AMOUNT_CENTS", 2500)),
		DuesCurrency:    getEnv("DUES_CURRENCY", "usd"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),

		SheetsSpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		zap.S().Warnw("invalid numeric env value, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.S().Warnw("invalid duration env value, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	zap.S().Errorw(message, "status", httpStatusCode, "error", errText)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{Message: message, Error: errText}})
	w.Write(b)
}

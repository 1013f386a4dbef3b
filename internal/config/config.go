package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	Password     string
	LogDirectory string
	LogLevel     string

	StoreDriver   string // memory, sqlite or mongo
	SQLitePath    string
	MongoURI      string
	MongoDatabase string

	ClickhouseAddr     string
	ClickhouseDatabase string
	ClickhouseUsername string
	ClickhousePassword string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	ModelPath         string
	ClassifierWorkers int // DNN nets shared by all cameras

	FrameSkip            int // Forward every Nth frame to detection (2 = every second frame)
	ReconnectDelay       time.Duration
	DetectionInterval    time.Duration
	RecheckInterval      time.Duration
	NotificationCooldown time.Duration
	SubscriberTimeout    time.Duration
	NotifyQueueSize      int
	ParkPollInterval     time.Duration

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioPhoneNumber    string
	EmergencyPhoneNumber string
	GoogleMapsAPIKey     string
	ResourceRadiusMiles  float64
	NPSAPIKey            string

	SnapshotDirectory     string // empty disables fire snapshots
	SnapshotLimit         int    // snapshots kept per camera between flushes
	SnapshotFlushInterval time.Duration

	DefaultCameraURL  string
	DefaultCameraName string
	DefaultCameraLat  float64
	DefaultCameraLon  float64
}

// Load reads the configuration from the environment. A .env file in the
// working directory, if present, is loaded first and never overrides
// variables that are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnvAsInt("PORT", 8080),
		Password:     getEnv("PASSWORD", "firewatch"),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		StoreDriver:   getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:    getEnv("SQLITE_PATH", filepath.Join(".", "data", "firewatch.db")),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "firewatch"),

		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickhouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "firewatch:status"),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "firewatch"),
		MQTTTopic:    getEnv("MQTT_TOPIC", "firewatch/status"),

		ModelPath:         getEnv("MODEL_PATH", filepath.Join(".", "models", "fire_inception_v3.onnx")),
		ClassifierWorkers: getEnvAsInt("CLASSIFIER_WORKERS", 2),

		FrameSkip:            getEnvAsInt("FRAME_SKIP", 2),
		ReconnectDelay:       getEnvAsDuration("RECONNECT_DELAY", 5*time.Second),
		DetectionInterval:    getEnvAsDuration("DETECTION_INTERVAL", 100*time.Millisecond),
		RecheckInterval:      getEnvAsDuration("RECHECK_INTERVAL", 60*time.Second),
		NotificationCooldown: getEnvAsDuration("NOTIFICATION_COOLDOWN", 60*time.Second),
		SubscriberTimeout:    getEnvAsDuration("SUBSCRIBER_TIMEOUT", 2*time.Second),
		NotifyQueueSize:      getEnvAsInt("NOTIFY_QUEUE", 64),
		ParkPollInterval:     getEnvAsDuration("PARK_POLL_INTERVAL", 5*time.Minute),

		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:    getEnv("TWILIO_PHONE_NUMBER", ""),
		EmergencyPhoneNumber: getEnv("EMERGENCY_PHONE_NUMBER", ""),
		GoogleMapsAPIKey:     getEnv("GOOGLE_MAPS_API_KEY", ""),
		ResourceRadiusMiles:  getEnvAsFloat("RESOURCE_RADIUS_MILES", 10),
		NPSAPIKey:            getEnv("NPS_API_KEY", ""),

		SnapshotDirectory:     getEnv("SNAPSHOT_DIR", filepath.Join(".", "data", "snapshots")),
		SnapshotLimit:         getEnvAsInt("SNAPSHOT_LIMIT", 10),
		SnapshotFlushInterval: getEnvAsDuration("SNAPSHOT_FLUSH_INTERVAL", 30*time.Second),

		DefaultCameraURL:  getEnv("DEFAULT_CAMERA_URL", ""),
		DefaultCameraName: getEnv("DEFAULT_CAMERA_NAME", "Default DroidCam"),
		DefaultCameraLat:  getEnvAsFloat("DEFAULT_CAMERA_LAT", 0),
		DefaultCameraLon:  getEnvAsFloat("DEFAULT_CAMERA_LON", 0),
	}
}

// TwilioEnabled reports whether emergency calls can be placed.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

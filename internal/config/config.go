package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int               `validate:"gt=0,lte=65535"`
	CamerasPort  int               `validate:"gt=0,lte=65535"`
	CameraNames  map[string]string // camera IP -> display name
	APIToken     string
	LogDirectory string `validate:"required"`
	DatabasePath string `validate:"required"`

	HumanDetectionModel      string
	ActivityRecognitionModel string
	ActivityLabelsFile       string

	InputImageWidth             int     `validate:"gt=0"`
	InputImageHeight            int     `validate:"gt=0"`
	PresenceInputSize           int     `validate:"gt=0"`
	PresenceThreshold           float64 `validate:"gte=0,lte=1"`
	ActivityConfidenceThreshold float64 `validate:"gte=0,lte=1"`
	PersonClassID               int     `validate:"gte=0"`
	MaxDetections               int     `validate:"gt=0"`
	HOGFallback                 bool
	ApplySoftmax                bool

	// Graph endpoints, "op:index" form.
	PresenceInput        string `validate:"required"`
	PresenceClassesOut   string `validate:"required"`
	PresenceScoresOut    string `validate:"required"`
	ActivityInput        string `validate:"required"`
	ActivityOutput       string `validate:"required"`
	SignatureKey         string `validate:"required"`
	ProcessingInterval   int    `validate:"gt=0"` // Every Nth frame per camera goes through perception (1=every frame)
	ProcessingWorkers    int    `validate:"gt=0"`
	ProcessingQueueDepth int    `validate:"gt=0"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		CamerasPort:  getEnvAsInt("CAMERAS_PORT", 9999),
		CameraNames:  parseCameraNames(getEnv("CAMERA_NAMES", "")),
		APIToken:     getEnv("API_TOKEN", ""),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath: getEnv("DB_PATH", filepath.Join(".", "data", "observations.db")),

		HumanDetectionModel:      getEnv("HUMAN_DETECTION_MODEL", ""),
		ActivityRecognitionModel: getEnv("ACTIVITY_RECOGNITION_MODEL", ""),
		ActivityLabelsFile:       getEnv("ACTIVITY_LABELS_FILE", ""),

		InputImageWidth:             getEnvAsInt("INPUT_IMAGE_WIDTH", 224),
		InputImageHeight:            getEnvAsInt("INPUT_IMAGE_HEIGHT", 224),
		PresenceInputSize:           getEnvAsInt("PRESENCE_INPUT_SIZE", 320),
		PresenceThreshold:           getEnvAsFloat("PRESENCE_THRESHOLD", 0.5),
		ActivityConfidenceThreshold: getEnvAsFloat("ACTIVITY_CONFIDENCE_THRESHOLD", 0.3),
		PersonClassID:               getEnvAsInt("PERSON_CLASS_ID", 1),
		MaxDetections:               getEnvAsInt("MAX_DETECTIONS", 100),
		HOGFallback:                 getEnvAsBool("HOG_FALLBACK", true),
		ApplySoftmax:                getEnvAsBool("ACTIVITY_SOFTMAX", false),

		PresenceInput:        getEnv("PRESENCE_INPUT", "serving_default_input_tensor"),
		PresenceClassesOut:   getEnv("PRESENCE_CLASSES_OUTPUT", "StatefulPartitionedCall:1"),
		PresenceScoresOut:    getEnv("PRESENCE_SCORES_OUTPUT", "StatefulPartitionedCall:2"),
		ActivityInput:        getEnv("ACTIVITY_INPUT", "serving_default_inputs"),
		ActivityOutput:       getEnv("ACTIVITY_OUTPUT", "StatefulPartitionedCall"),
		SignatureKey:         getEnv("SIGNATURE_KEY", "serving_default"),
		ProcessingInterval:   getEnvAsInt("PROCESSING_INTERVAL", 3),
		ProcessingWorkers:    getEnvAsInt("PROCESSING_WORKERS", 2),
		ProcessingQueueDepth: getEnvAsInt("PROCESSING_QUEUE_DEPTH", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges declared in the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parseCameraNames parses "10.0.0.5=kitchen,10.0.0.6=living_room".
func parseCameraNames(raw string) map[string]string {
	names := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		ip, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || ip == "" || name == "" {
			continue
		}
		names[strings.TrimSpace(ip)] = strings.TrimSpace(name)
	}
	return names
}

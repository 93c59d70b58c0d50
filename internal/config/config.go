package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client configures the chat client library and the terminal client.
type Client struct {
	APIURL    string
	SocketURL string
	Token     string
	UserID    string

	HTTPTimeout    time.Duration
	TypingTimeout  time.Duration
	LinkTableSize  int
	ProfileURL     string
	ModeratorIDs   []string
	MediaHost      string
	ObjectHostSfx  string
	CropSize       int
	UploadMaxBytes int64

	S3Bucket string
	S3Region string
	S3Prefix string

	MediaImageURL     string
	MediaVideoURL     string
	MediaUploadPreset string

	LogLevel  string
	LogPretty bool
}

// Sandbox configures the local stand-in backend.
type Sandbox struct {
	AppName     string
	Host        string
	Port        int
	DBPath      string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	LogLevel  string
	LogPretty bool
}

func LoadClient() (*Client, error) {
	cfg := &Client{
		APIURL:    strings.TrimRight(getEnv("HIVECHAT_API_URL", "http://localhost:8080/api/v1"), "/"),
		SocketURL: getEnv("HIVECHAT_SOCKET_URL", "ws://localhost:8080/ws"),
		Token:     os.Getenv("HIVECHAT_TOKEN"),
		UserID:    os.Getenv("HIVECHAT_USER_ID"),

		HTTPTimeout:    getEnvAsDuration("HIVECHAT_HTTP_TIMEOUT", 15*time.Second),
		TypingTimeout:  getEnvAsDuration("HIVECHAT_TYPING_TIMEOUT", 3*time.Second),
		LinkTableSize:  getEnvAsInt("HIVECHAT_LINK_TABLE_SIZE", 512),
		ProfileURL:     getEnv("HIVECHAT_PROFILE_URL", "https://socialhive.app/profile/"),
		ModeratorIDs:   getEnvAsList("HIVECHAT_MODERATOR_IDS", nil),
		MediaHost:      getEnv("HIVECHAT_MEDIA_HOST", "res.cloudinary.com"),
		ObjectHostSfx:  getEnv("HIVECHAT_OBJECT_HOST_SUFFIX", ".amazonaws.com"),
		CropSize:       getEnvAsInt("HIVECHAT_CROP_SIZE", 512),
		UploadMaxBytes: int64(getEnvAsInt("HIVECHAT_UPLOAD_MAX_MB", 50)) << 20,

		S3Bucket: os.Getenv("HIVECHAT_S3_BUCKET"),
		S3Region: getEnv("HIVECHAT_S3_REGION", "us-east-1"),
		S3Prefix: getEnv("HIVECHAT_S3_PREFIX", "chat-attachments/"),

		MediaImageURL:     os.Getenv("HIVECHAT_MEDIA_IMAGE_URL"),
		MediaVideoURL:     os.Getenv("HIVECHAT_MEDIA_VIDEO_URL"),
		MediaUploadPreset: os.Getenv("HIVECHAT_MEDIA_UPLOAD_PRESET"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("HIVECHAT_TOKEN is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("HIVECHAT_USER_ID is required")
	}
	if err := requireURL("HIVECHAT_API_URL", cfg.APIURL, "http", "https"); err != nil {
		return nil, err
	}
	if err := requireURL("HIVECHAT_SOCKET_URL", cfg.SocketURL, "ws", "wss"); err != nil {
		return nil, err
	}
	if cfg.TypingTimeout <= 0 {
		return nil, fmt.Errorf("HIVECHAT_TYPING_TIMEOUT must be positive")
	}

	return cfg, nil
}

// ObjectStoreEnabled reports whether generic file uploads are configured.
func (c *Client) ObjectStoreEnabled() bool {
	return c.S3Bucket != ""
}

// MediaStoreEnabled reports whether image/video uploads are configured.
func (c *Client) MediaStoreEnabled() bool {
	return c.MediaImageURL != "" && c.MediaVideoURL != ""
}

func LoadSandbox() (*Sandbox, error) {
	cfg := &Sandbox{
		AppName:   getEnv("APP_NAME", "SocialHive chat sandbox"),
		Host:      getEnv("SANDBOX_HOST", "0.0.0.0"),
		Port:      getEnvAsInt("SANDBOX_PORT", 8080),
		DBPath:    getEnv("SANDBOX_DB_PATH", "sandbox.db"),
		JWTSecret: os.Getenv("SANDBOX_JWT_SECRET"),
		TokenTTL:  getEnvAsDuration("SANDBOX_TOKEN_TTL", 24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
	}
	cfg.CORSOrigins = getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"})

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SANDBOX_JWT_SECRET is required")
	}
	return cfg, nil
}

func (c *Sandbox) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func requireURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s: invalid url %q", key, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme must be one of %v", key, schemes)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvAsList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

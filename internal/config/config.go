package config

import (
	"errors"  // For validation errors
	"fmt"     // For formatted errors
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For parsing key lists
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Team downline policies for nested team leaders
const (
	TeamPolicyInclude = "include" // Fold nested leaders' downlines into the parent
	TeamPolicyExclude = "exclude" // Stop descending at nested leaders
)

// Config holds the application configuration
type Config struct {
	AppPort        string            // Application port
	DBDriver       string            // mysql or postgres
	DBUser         string            // Database user
	DBPassword     string            // Database password
	DBHost         string            // Database host
	DBPort         string            // Database port
	DBName         string            // Database name
	DBSSLMode      string            // Postgres sslmode
	JWTKeys        map[string]string // Signing secrets by key id
	JWTActiveKID   string            // Key id used to sign new tokens
	JWTTTL         time.Duration     // Token lifetime
	RedisEnabled   bool              // Whether redis is used for cache and sequences
	RedisAddr      string            // Redis server address
	RedisPass      string            // Redis password
	RedisDB        int               // Redis database number
	CacheTTL       time.Duration     // TTL of cached admin listings
	TeamPolicy     string            // include or exclude
	SalesUnitPrice int64             // Currency units per dividend coin
	AdminName      string            // Name of the seeded admin account
	AdminPhone     string            // Phone of the seeded admin account, empty skips seeding
	AdminPassword  string            // Initial password of the seeded admin account
	IsProd         bool              // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),                                   // Application port
		DBDriver:       getEnv("DB_DRIVER", "mysql"),                                 // Database driver
		DBUser:         os.Getenv("DB_USER"),                                         // Database user
		DBPassword:     os.Getenv("DB_PASSWORD"),                                     // Database password
		DBHost:         getEnv("DB_HOST", "localhost"),                               // Database host
		DBPort:         os.Getenv("DB_PORT"),                                         // Database port
		DBName:         os.Getenv("DB_NAME"),                                         // Database name
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),                              // Postgres sslmode
		JWTKeys:        ParseKeys(os.Getenv("JWT_KEYS")),                             // Signing secrets
		JWTActiveKID:   os.Getenv("JWT_ACTIVE_KID"),                                  // Active key id
		JWTTTL:         time.Duration(getInt("JWT_TTL_HOURS", 168)) * time.Hour,      // Token lifetime
		RedisEnabled:   os.Getenv("REDIS_ENABLED") == "true",                         // Redis switch
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),                       // Redis server address
		RedisPass:      os.Getenv("REDIS_PASS"),                                      // Redis password
		RedisDB:        redisDB,                                                      // Redis database number
		CacheTTL:       time.Duration(getInt("CACHE_TTL_SECONDS", 60)) * time.Second, // Cache TTL
		TeamPolicy:     getEnv("TEAM_NESTED_LEADERS", TeamPolicyExclude),             // Nested leader policy
		SalesUnitPrice: int64(getInt("SALES_UNIT_PRICE", 100)),                       // Sales unit price
		AdminName:      getEnv("ADMIN_NAME", "Administrator"),                        // Seeded admin name
		AdminPhone:     os.Getenv("ADMIN_PHONE"),                                     // Seeded admin phone
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),                                  // Seeded admin password
		IsProd:         os.Getenv("IS_PROD") == "true",                               // Is production environment
	}
}

// Validate checks that the configuration can start the server
func (c *Config) Validate() error {
	if len(c.JWTKeys) == 0 {
		return errors.New("JWT_KEYS is required")
	}
	if _, ok := c.JWTKeys[c.JWTActiveKID]; !ok {
		return fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.JWTActiveKID)
	}
	if c.DBDriver != "mysql" && c.DBDriver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.TeamPolicy != TeamPolicyInclude && c.TeamPolicy != TeamPolicyExclude {
		return fmt.Errorf("unsupported TEAM_NESTED_LEADERS %q", c.TeamPolicy)
	}
	if c.SalesUnitPrice <= 0 {
		return errors.New("SALES_UNIT_PRICE must be positive")
	}
	return nil
}

// DSN builds the data source name for the configured driver
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		port := c.DBPort
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.DBHost, c.DBUser, c.DBPassword, c.DBName, port, c.DBSSLMode)
	}
	port := c.DBPort
	if port == "" {
		port = "3306"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + port + ")/" + c.DBName + "?parseTime=true"
}

// ParseKeys parses "kid:secret,kid:secret" into a map; malformed pairs are skipped
func ParseKeys(raw string) map[string]string {
	keys := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		kid, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || kid == "" || secret == "" {
			continue
		}
		keys[kid] = secret
	}
	return keys
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strings"
)

// Supported values for DB_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Only the application identity, the port and the
// JWT secret are mandatory; everything else falls back to a development
// default so the service can boot against a local SQLite file.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	LogLevel       string // zap level: debug, info, warn, error
	DBDriver       string // sqlite or mysql
	DBPath         string // sqlite database file
	DBUser         string // mysql username
	DBPass         string // mysql password (optional)
	DBHost         string // mysql host address
	DBPort         string // mysql port number
	DBName         string // mysql database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	ScryptN        int    // scrypt CPU/memory cost, power of two
	RabbitURL      string // AMQP broker url; empty disables events
	AuditLogPath   string // file the reservation consumer appends to
	AdminUsername  string // bootstrap admin created at startup when set
	AdminPassword  string // password for AdminUsername
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		DBDriver:       strings.ToLower(envStr("DB_DRIVER", DriverSQLite)),
		DBPath:         envStr("DB_PATH", "boxes.db"),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         envStr("DB_HOST", "127.0.0.1"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         envStr("DB_NAME", "boxes"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		ScryptN:        envInt("SCRYPT_N", 1<<15),
		RabbitURL:      rabbitURL(),
		AuditLogPath:   envStr("AUDIT_LOG_PATH", "logs/reservations.log"),
		AdminUsername:  os.Getenv("ADMIN_USERNAME"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
	}
	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverMySQL:
		if cfg.DBUser == "" {
			log.Fatalf("missing required env var: DB_USER (DB_DRIVER=mysql)")
		}
	default:
		log.Fatalf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}
	if cfg.AdminUsername != "" && cfg.AdminPassword == "" {
		log.Fatalf("missing required env var: ADMIN_PASSWORD (ADMIN_USERNAME is set)")
	}
	return cfg
}

// rabbitURL honours both RABBITMQ_URL and the shorter AMQP_URL.  An empty
// result means the broker is not configured.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

package configuration

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/carlo-ubqty/araw-sub000/pkg/blob"
	"github.com/carlo-ubqty/araw-sub000/pkg/logging"
)

var DefaultEnvFiles = []string{".env", ".env.local"}

var ErrInvalidConfig = errors.New("invalid configuration")

// LoadEnv loads the env files that exist, looking in the working directory
// first and then in the nearest ancestor holding a go.mod. It returns how
// many files were loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles(".", envFiles)
	if len(existing) == 0 {
		if root, ok := moduleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		p := file
		if !filepath.IsAbs(file) {
			p = filepath.Join(dir, file)
		}
		if fs.FileExists(p) {
			out = append(out, p)
		}
	}
	return out
}

func moduleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Driver         string        `env:"DB_DRIVER" envDefault:"mysql" validate:"oneof=mysql postgres sqlite"`
	Host           string        `env:"DB_HOST" envDefault:"localhost"`
	Port           string        `env:"DB_PORT"`
	User           string        `env:"DB_USER" envDefault:"root"`
	Password       string        `env:"DB_PASSWORD"`
	Name           string        `env:"DB_NAME" envDefault:"ccet" validate:"required"`
	DSN            string        `env:"DB_DSN"`
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

func (d *DatabaseOptions) port() string {
	if d.Port != "" {
		return d.Port
	}
	if d.Driver == "postgres" {
		return "5432"
	}
	return "3306"
}

// ConnectionString returns DB_DSN when set, otherwise a DSN assembled from
// the individual fields for the configured driver. For sqlite DB_NAME is the
// database file path.
func (d *DatabaseOptions) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		q := url.Values{}
		q.Set("sslmode", "disable")
		q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, d.port()),
			Path:     "/" + d.Name,
			RawQuery: q.Encode(),
		}
		return u.String()
	case "sqlite":
		return d.Name
	default:
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, d.port())
		cfg.DBName = d.Name
		cfg.ParseTime = true
		cfg.Timeout = d.ConnectTimeout
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return cfg.FormatDSN()
	}
}

const redactedPassword = "xxxxx"

// Redacted is ConnectionString with the password masked, for logs.
func (d *DatabaseOptions) Redacted() string {
	if d.DSN == "" {
		cp := *d
		if cp.Password != "" {
			cp.Password = redactedPassword
		}
		return cp.ConnectionString()
	}
	switch d.Driver {
	case "postgres":
		if u, err := url.Parse(d.DSN); err == nil && u.Scheme != "" {
			return u.Redacted()
		}
	case "mysql":
		if cfg, err := mysql.ParseDSN(d.DSN); err == nil {
			if cfg.Passwd != "" {
				cfg.Passwd = redactedPassword
			}
			return cfg.FormatDSN()
		}
	}
	return d.DSN
}

type SnapshotOptions struct {
	Driver            string `env:"SNAPSHOT_DRIVER" envDefault:"fs" validate:"oneof=fs s3 memory"`
	FSRoot            string `env:"SNAPSHOT_FS_ROOT" envDefault:"./data"`
	S3Bucket          string `env:"SNAPSHOT_S3_BUCKET" validate:"required_if=Driver s3"`
	S3Region          string `env:"SNAPSHOT_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"SNAPSHOT_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"SNAPSHOT_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"SNAPSHOT_S3_SECRET_ACCESS_KEY"`
	S3SessionToken    string `env:"SNAPSHOT_S3_SESSION_TOKEN"`
	S3PathStyle       bool   `env:"SNAPSHOT_S3_PATH_STYLE" envDefault:"false"`
	S3Prefix          string `env:"SNAPSHOT_S3_PREFIX"`
}

func (s *SnapshotOptions) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(s.Driver),
		FSRoot: s.FSRoot,
		S3: blob.S3Config{
			Bucket:          s.S3Bucket,
			Region:          s.S3Region,
			Endpoint:        s.S3Endpoint,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretAccessKey,
			SessionToken:    s.S3SessionToken,
			PathStyle:       s.S3PathStyle,
			Prefix:          s.S3Prefix,
		},
	}
}

type ImportOptions struct {
	SectorStrategy string `env:"SECTOR_STRATEGY" envDefault:"fixed" validate:"oneof=fixed existing typology"`
	SectorCode     string `env:"SECTOR_CODE" envDefault:"NAP_GOVT" validate:"required"`
	SectorName     string `env:"SECTOR_NAME" envDefault:"National Government (NAP)"`
	// SheetsConfig points at a YAML or TOML sheet table; empty uses the
	// built-in table.
	SheetsConfig string `env:"CCET_SHEETS_CONFIG"`
	ErrorSample  int    `env:"ERROR_SAMPLE" envDefault:"10" validate:"min=0"`
	RecordSample int    `env:"RECORD_SAMPLE" envDefault:"0" validate:"min=0"`
	// ProgressEvery logs import progress every N records; 0 turns it off.
	ProgressEvery int `env:"PROGRESS_EVERY" envDefault:"1000" validate:"min=0"`
}

type Configuration struct {
	Database DatabaseOptions
	Snapshot SnapshotOptions
	Import   ImportOptions

	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	LogPath         string `env:"LOG_PATH"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	logFile io.Closer
	logger  *logrus.Logger
}

// Load reads env files and the process environment into a validated
// Configuration and opens its logger. Call Unload when done.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.LogLevel)
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return errors.Wrap(err, "load env files")
	}
	if err := env.Parse(c); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "parse env: %v", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.New(c.LogLevel, c.LogFormat, c.LogPath)
	if err != nil {
		return err
	}
	c.logger = logger
	c.logFile = closer
	if n == 0 {
		logger.WithField("tried", strings.Join(envFiles, ",")).Debug("no .env files found")
	}
	return nil
}

func (c *Configuration) normalize() {
	c.Database.Driver = canonical(c.Database.Driver, map[string]string{
		"postgresql": "postgres", "pgx": "postgres", "sqlite3": "sqlite",
	})
	c.Snapshot.Driver = canonical(c.Snapshot.Driver, map[string]string{
		"filesystem": "fs", "minio": "s3", "mem": "memory",
	})
	c.Import.SectorStrategy = strings.ToLower(strings.TrimSpace(c.Import.SectorStrategy))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

func canonical(v string, aliases map[string]string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if to, ok := aliases[v]; ok {
		return to
	}
	return v
}

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

func (c *Configuration) Validate() error {
	if err := validate().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.Wrap(ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// Unload releases the log file.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
		c.logFile = nil
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type App struct {
	Name string
	Env  string
	// 对外访问地址，用于重置密码链接；为空则取请求 Host
	BaseURL string
}

type HTTP struct {
	Host              string
	Port              int
	ReadTimeoutSec    int
	WriteTimeoutSec   int
	IdleTimeoutSec    int
	RequestTimeoutSec int
	MaxBodyMB         int
	RateLimitRPS      float64
	RateLimitBurst    int
	MaxConcurrent     int64
}

type Rotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate Rotate
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ListingTTLSec int    `mapstructure:"listingttlsec"`
}

// DB.Driver 取值 postgres / mysql / sqlite / mongo
type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Mongo struct {
	URI        string
	Database   string
	TimeoutSec int
}

type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Media struct {
	Backend      string // local / s3
	LocalDir     string
	PublicURL    string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	MaxSecondary int
	MaxPartMB    int
	MaxDimension int
}

type Security struct {
	LoginLimit       int
	LoginWindowMin   int
	ResetTokenTTLMin int
}

type Config struct {
	App      App
	HTTP     HTTP
	Log      Log
	JWT      JWT
	DB       DB
	Mongo    Mongo
	Redis    Redis `mapstructure:"redis"`
	Mail     Mail
	Media    Media
	Security Security
}

// 兼容旧部署使用的环境变量名
var envAliases = map[string][]string{
	"http.port":     {"PORT"},
	"jwt.secret":    {"JWT_SECRET"},
	"db.dsn":        {"DATABASE_URL"},
	"mongo.uri":     {"MONGO_URI"},
	"mail.host":     {"EMAIL_HOST"},
	"mail.port":     {"EMAIL_PORT"},
	"mail.username": {"EMAIL"},
	"mail.password": {"EMAIL_PASSWORD"},
	"redis.addr":    {"REDIS_ADDR"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "easyrent")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.baseurl", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeoutsec", 15)
	v.SetDefault("http.writetimeoutsec", 30)
	v.SetDefault("http.idletimeoutsec", 60)
	v.SetDefault("http.requesttimeoutsec", 20)
	v.SetDefault("http.maxbodymb", 64)
	v.SetDefault("http.ratelimitrps", 200)
	v.SetDefault("http.ratelimitburst", 400)
	v.SetDefault("http.maxconcurrent", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.rotate.enable", false)
	v.SetDefault("log.rotate.filename", "logs/app.log")
	v.SetDefault("log.rotate.maxsizemb", 100)
	v.SetDefault("log.rotate.maxbackups", 7)
	v.SetDefault("log.rotate.maxagedays", 30)
	v.SetDefault("log.rotate.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "easyrent")
	v.SetDefault("jwt.accesstokenttlmin", 90*24*60)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "easyrent.db")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxopenconns", 50)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "easyrent")
	v.SetDefault("mongo.timeoutsec", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.listingttlsec", 300)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "EasyRent <no-reply@easyrent.local>")

	v.SetDefault("media.backend", "local")
	v.SetDefault("media.localdir", "uploads")
	v.SetDefault("media.publicurl", "/uploads")
	v.SetDefault("media.s3bucket", "")
	v.SetDefault("media.s3region", "us-east-1")
	v.SetDefault("media.s3endpoint", "")
	v.SetDefault("media.maxsecondary", 5)
	v.SetDefault("media.maxpartmb", 10)
	v.SetDefault("media.maxdimension", 1600)

	v.SetDefault("security.loginlimit", 10)
	v.SetDefault("security.loginwindowmin", 60)
	v.SetDefault("security.resettokenttlmin", 10)
}

// Load reads an optional YAML file, then environment overrides.
// An empty path falls back to CONFIG_PATH and then ./configs/config.local.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		prefixed := "APP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	// 配置文件可选
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, c.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite", "mongo":
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not supported", c.DB.Driver))
	}
	switch c.Media.Backend {
	case "local":
	case "s3":
		if c.Media.S3Bucket == "" {
			errs = append(errs, errors.New("media.s3bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("media.backend %q is not supported", c.Media.Backend))
	}
	if c.HTTP.Port <= 0 {
		errs = append(errs, errors.New("http.port must be positive"))
	}
	// 邮件里的重置链接不能取自客户端的 Host 头
	if c.IsProduction() && c.MailEnabled() && strings.TrimSpace(c.App.BaseURL) == "" {
		errs = append(errs, errors.New("app.baseurl is required when mail is enabled in production"))
	}
	return errors.Join(errs...)
}

// MailEnabled 未配置 SMTP 时改用日志投递
func (c *Config) MailEnabled() bool { return strings.TrimSpace(c.Mail.Host) != "" }

func (c *Config) IsProduction() bool { return strings.EqualFold(c.App.Env, "production") }

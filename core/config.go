package core

import (
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvDev  = "DEV"
	EnvTest = "TEST"
	EnvQA   = "QA"
	EnvProd = "PROD"
)

type (
	Config struct {
		AppName                   string        `mapstructure:"app_name"`
		Build                     string        `mapstructure:"build"`
		Env                       string        `mapstructure:"env"`
		Debug                     bool          `mapstructure:"debug"`
		TestMode                  bool          `mapstructure:"test_mode"`
		SecretKey                 string        `mapstructure:"secret_key"`
		FrontendBaseURL           string        `mapstructure:"frontend_base_url"`
		DefaultFromEmailAddr      string        `mapstructure:"default_from_email"`
		PasswordResetTimeoutDelta time.Duration `mapstructure:"password_reset_timeout_delta"`
		RollbarToken              string        `mapstructure:"rollbar_token"`
		SendgridApiKey            string        `mapstructure:"sendgrid_api_key"`

		Server    ServerConfig    `mapstructure:"server"`
		Database  DatabaseConfig  `mapstructure:"database"`
		Logging   LoggingConfig   `mapstructure:"logging"`
		Bible     BibleConfig     `mapstructure:"bible"`
		OpenAI    OpenAIConfig    `mapstructure:"openai"`
		Stripe    StripeConfig    `mapstructure:"stripe"`
		WebPush   WebPushConfig   `mapstructure:"webpush"`
		Scheduler SchedulerConfig `mapstructure:"scheduler"`
	}

	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		DebugHost                 string        `mapstructure:"debug_host"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdown_timeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwt_expiration_delta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwt_refresh_expiration_delta"`
		AllowOrigins              []string      `mapstructure:"allow_origins"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"`
		Host          string `mapstructure:"host"`
		Port          int    `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"admin_user"`
		AdminPassword string `mapstructure:"admin_password"`
		DisableTLS    bool   `mapstructure:"disable_tls"`
		MaxOpenConns  int    `mapstructure:"max_open_conns"`
		MaxIdleConns  int    `mapstructure:"max_idle_conns"`
	}

	LoggingConfig struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"` // rotated by lumberjack when set
	}

	BibleConfig struct {
		BaseURL            string        `mapstructure:"base_url"`
		DefaultTranslation string        `mapstructure:"default_translation"`
		AudioURLTemplate   string        `mapstructure:"audio_url_template"`
		Timeout            time.Duration `mapstructure:"timeout"`
	}

	OpenAIConfig struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
		Model   string `mapstructure:"model"`
	}

	StripeConfig struct {
		SecretKey     string `mapstructure:"secret_key"`
		WebhookSecret string `mapstructure:"webhook_secret"`
		Currency      string `mapstructure:"currency"`
	}

	WebPushConfig struct {
		VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
		VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
		Subscriber      string `mapstructure:"subscriber"`
	}

	SchedulerConfig struct {
		Enabled bool          `mapstructure:"enabled"`
		Spec    string        `mapstructure:"spec"`   // cron spec of the notification tick
		Window  time.Duration `mapstructure:"window"` // how late a notification may still fire
	}
)

// NewConfig loads the configuration of the current ENV: DEV (local; default), TEST, QA or PROD.
// Values come from `config/.env.<env>` (if it exists) and environment variables prefixed by ENV,
// e.g. DEV_DATABASE_HOST.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = EnvDev
	}

	dotEnvPath := "config/.env." + strings.ToLower(env)
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v := viper.New()
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	conf.Env = env
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("app_name", "Selah")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == EnvDev)
	v.SetDefault("test_mode", env == EnvTest)
	v.SetDefault("secret_key", "m3#q8-zl(2v!hx%p_0c^swu+9e@kd5n&fr7ty4$ob6ga1j")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "Selah <noreply@localhost>")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debug_host", "0.0.0.0:4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "selah")
	v.SetDefault("database.user", "selah")
	v.SetDefault("database.password", "selah")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "postgres")
	v.SetDefault("database.disable_tls", true)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.file", "")

	v.SetDefault("bible.base_url", "https://bible-api.com")
	v.SetDefault("bible.default_translation", "web")
	v.SetDefault("bible.audio_url_template", "https://audio.selah.app/{translation}/{book}/{chapter}.mp3")
	v.SetDefault("bible.timeout", 10*time.Second)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.currency", "usd")

	v.SetDefault("webpush.vapid_public_key", "")
	v.SetDefault("webpush.vapid_private_key", "")
	v.SetDefault("webpush.subscriber", "mailto:admin@localhost")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("scheduler.window", 5*time.Minute)
}

// Validate ensures required fields are present.
func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Env == EnvProd && (c.SecretKey == "" || c.Debug) {
		return errors.New("secret_key is required and debug must be off in PROD")
	}
	if _, err := mail.ParseAddress(c.DefaultFromEmailAddr); err != nil {
		return errors.Wrap(err, "parsing default_from_email")
	}
	return nil
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmailAddr)
	if err != nil {
		return mail.Address{Address: c.DefaultFromEmailAddr}
	}
	return *addr
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// NewTestConfig returns the configuration used by tests; it never touches the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v, EnvTest)
	conf := new(Config)
	_ = v.Unmarshal(conf)
	conf.Env = EnvTest
	return conf
}

package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete client configuration, loadable from environment
// variables (BOOKSHOP_ prefix), flags, or YAML config files.
type Config struct {
	APIURL       string        `default:"http://localhost:8007" usage:"Bookshop API base URL" flag:"api-url" env:"API_URL" yaml:"api_url"`
	Language     string        `default:"cs" usage:"Message language (cs or en)" yaml:"language"`
	Timeout      time.Duration `default:"10s" usage:"HTTP request timeout, 0 disables it" yaml:"timeout"`
	PageSize     int           `default:"25" usage:"Cart page size" flag:"page-size" env:"PAGE_SIZE" yaml:"page_size"`
	ConfirmDelay time.Duration `default:"2s" usage:"Delay between order confirmation and showing the order" flag:"confirm-delay" env:"CONFIRM_DELAY" yaml:"confirm_delay"`
	JournalPath  string        `usage:"Order journal database file (BOOKSHOP_JOURNAL_PATH)" flag:"journal-path" env:"JOURNAL_PATH" yaml:"journal_path"`
	Username     string        `usage:"Account user name (BOOKSHOP_USERNAME)" yaml:"username"`
	Password     string        `usage:"Account password (BOOKSHOP_PASSWORD)" yaml:"password"`
	RateLimit    RateLimitConfig
}

// RateLimitConfig controls the client-side sliding window limiter on
// outgoing requests.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max requests per endpoint per window, 0 disables it" yaml:"max"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration" yaml:"window"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and the global flags in args. It returns the arguments left after
// the flags, i.e. the command and its own arguments.
func LoadConfig(args []string) (*Config, []string, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOOKSHOP",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/bookshop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(); err != nil {
		return nil, nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, loader.Flags().Args(), nil
}

// applyPlatformDefaults places the journal in the user's cache directory
// unless a path was configured.
func (c *Config) applyPlatformDefaults() error {
	if c.JournalPath != "" {
		return nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return errors.Wrap(err, "resolve journal path: set BOOKSHOP_JOURNAL_PATH")
	}
	c.JournalPath = filepath.Join(dir, "bookshop", "journal.db")
	return nil
}

func (c *Config) validate() error {
	if c.APIURL == "" {
		return errors.New("api url is required: set BOOKSHOP_API_URL")
	}
	switch c.Language {
	case "cs", "en":
	default:
		return errors.Errorf("unsupported language %q", c.Language)
	}
	if c.PageSize < 1 {
		return errors.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

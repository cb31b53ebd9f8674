package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/zhipin-responder/internal/zhipin"
)

const (
	app = "zhipin-responder"
)

type Config struct {
	Search      *zhipin.SearchParams `mapstructure:"search"`
	Profile     *zhipin.Profile      `mapstructure:"profile"`
	ExcludeFile string               `mapstructure:"exclude-file"`
	Account     *AccountConfig       `mapstructure:"account"`
	Browser     *BrowserConfig       `mapstructure:"browser"`
	Proxy       *ProxyConfig         `mapstructure:"proxy"`
	Rate        *RateConfig          `mapstructure:"rate"`
	Session     *SessionConfig       `mapstructure:"session"`
	Cookies     *CookiesConfig       `mapstructure:"cookies"`
	Apply       *ApplyConfig         `mapstructure:"apply"`
	AI          *AIConfig            `mapstructure:"ai"`
	Serve       *ServeConfig         `mapstructure:"serve"`
}

type AccountConfig struct {
	Phone        string `mapstructure:"phone"`
	PasswordFile string `mapstructure:"password-file"`
}

type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	AntiDetection     bool          `mapstructure:"anti-detection"`
	UserAgent         string        `mapstructure:"user-agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation-timeout"`
	// Install downloads the Playwright driver and Chromium on launch.
	Install bool `mapstructure:"install"`
}

type ProxyConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	List    []string `mapstructure:"list"`
	File    string   `mapstructure:"file"`
}

type RateConfig struct {
	MaxRequests int           `mapstructure:"max-requests"`
	Window      time.Duration `mapstructure:"window"`
}

type SessionConfig struct {
	MaxOutreach int           `mapstructure:"max-outreach"`
	MaxDuration time.Duration `mapstructure:"max-duration"`
	MaxErrors   int           `mapstructure:"max-errors"`
}

type CookiesConfig struct {
	File     string        `mapstructure:"file"`
	RedisURL string        `mapstructure:"redis-url"`
	RedisKey string        `mapstructure:"redis-key"`
	RedisTTL time.Duration `mapstructure:"redis-ttl"`
}

type ApplyConfig struct {
	MinScore        int    `mapstructure:"min-score"`
	MaxCount        int    `mapstructure:"max-count"`
	Message         string `mapstructure:"message"`
	FullDescription bool   `mapstructure:"full-description"`
	Exclude         *struct {
		Employers        []string `mapstructure:"employers"`
		InactiveStatuses []string `mapstructure:"inactive-statuses"`
	} `mapstructure:"exclude"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	MinScore float64       `mapstructure:"min-score"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ServeConfig struct {
	Listen string `mapstructure:"listen"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "zhipin-responder searches BOSS Zhipin listings and greets recruiters at a human pace",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"account.password-file":  "ZHIPIN_PASSWORD_FILE",
		"cookies.file":           "ZHIPIN_COOKIES_FILE",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is zhipin-responder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("search.pages", 1)
	viper.SetDefault("browser.anti-detection", true)
	viper.SetDefault("cookies.file", "zhipin-cookies.json")
	viper.SetDefault("apply.min-score", 60)
	viper.SetDefault("apply.max-count", 10)
	viper.SetDefault("serve.listen", ":8000")
}

func initConfig() {
	// .env is optional; it only feeds the environment bindings above.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	// version needs no config at all, serve can live on defaults.
	if runCmd.CalledAs() == "" && loginCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	if err == nil {
		return
	}

	var notFound viper.ConfigFileNotFoundError
	if serveCmd.CalledAs() != "" && cfgFile == "" && errors.As(err, &notFound) {
		return
	}

	// We can't proceed if the config file parsed with error.
	log.Fatal(err)
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

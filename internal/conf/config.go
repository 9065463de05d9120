// Package conf loads and holds the application configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// SQLiteSettings holds SQLite catalog store settings
type SQLiteSettings struct {
	Enabled bool   // true to use SQLite
	Path    string // path to SQLite database file
}

// MySQLSettings holds MySQL catalog store settings
type MySQLSettings struct {
	Enabled  bool   // true to use MySQL
	Username string // MySQL database username
	Password string // MySQL database user password
	Database string // MySQL database name
	Host     string // MySQL database host
	Port     string // MySQL database port
}

// CatalogSettings holds the reference catalog store configuration
type CatalogSettings struct {
	SQLite      SQLiteSettings
	MySQL       MySQLSettings
	FuzzyCutoff float64 // similarity cutoff for fuzzy name resolution
}

// PriceFeedSettings holds the daily product export source configuration
type PriceFeedSettings struct {
	BaseURL        string // base URL of the export source
	Region         string // region suffix of the export filename
	StartDate      string // epoch start (YYYY-MM-DD) used when the store is empty
	MaxMissingDays int    // consecutive missing daily exports tolerated before halting
	CacheDir       string // directory for downloaded export files
}

// ReceiptSettings holds the retailer receipt source configuration
type ReceiptSettings struct {
	URL     string // receipt API endpoint
	Token   string // session token used as the auth cookie
	History int    // number of recent receipts listed
}

// GrocySettings holds the inventory system connection and product defaults
type GrocySettings struct {
	URL                   string // base URL in format https://host[:port]
	APIKey                string // static API key sent with every request
	LocationID            int    // default storage location for new products
	ShoppingLocationID    int    // store entry used for price tracking
	QuantityUnitID        int    // quantity unit applied to stock, purchase and price
	DefaultBestBeforeDays int    // default best-before period for new products
	MinStockAmount        int    // minimum stock amount for new products
}

// FoodFactsSettings holds the auxiliary product-data lookup configuration
type FoodFactsSettings struct {
	Enabled  bool          // true to consult the lookup for unknown products
	BaseURL  string        // API base URL
	CacheTTL time.Duration // response cache lifetime
}

// Settings contains all configuration options for pantrysync
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of the node
		Log  LogConfig // main log configuration
	}

	Catalog   CatalogSettings
	PriceFeed PriceFeedSettings
	Receipt   ReceiptSettings
	Grocy     GrocySettings
	FoodFacts FoodFactsSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create one from the defaults
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the current defaults as a config file at the
// first default config path and reads it back in.
func createDefaultConfig(configDir string) error {
	configPath := filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := viper.SafeWriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the config file search paths, most
// specific first.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config directory: %w", err)
	}
	return []string{
		filepath.Join(configDir, "pantrysync"),
		".",
	}, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ValidateSettings checks the loaded settings for configuration errors
// that would make a run pointless.
func ValidateSettings(settings *Settings) error {
	if !settings.Catalog.SQLite.Enabled && !settings.Catalog.MySQL.Enabled {
		return fmt.Errorf("no catalog store enabled, enable catalog.sqlite or catalog.mysql")
	}
	if settings.Catalog.SQLite.Enabled && settings.Catalog.MySQL.Enabled {
		return fmt.Errorf("only one catalog store may be enabled at a time")
	}
	if settings.Catalog.FuzzyCutoff <= 0 || settings.Catalog.FuzzyCutoff > 1 {
		return fmt.Errorf("catalog.fuzzycutoff must be within (0, 1], got %v", settings.Catalog.FuzzyCutoff)
	}
	if settings.PriceFeed.MaxMissingDays < 1 {
		return fmt.Errorf("pricefeed.maxmissingdays must be at least 1")
	}
	if _, err := time.Parse("2006-01-02", settings.PriceFeed.StartDate); err != nil {
		return fmt.Errorf("pricefeed.startdate must be YYYY-MM-DD: %w", err)
	}
	return nil
}

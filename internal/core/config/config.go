package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`
	// RedisURL is the connection string for the persistence collaborator.
	RedisURL string `mapstructure:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Orders holds the order-system API configuration.
	Orders OrdersConfig `mapstructure:",squash"`

	// Ranking holds the quote scoring policy.
	Ranking RankingConfig `mapstructure:",squash"`

	// Aggregator holds fan-out timeout settings for instant-courier quoting.
	Aggregator AggregatorConfig `mapstructure:",squash"`

	// Couriers holds per-provider credentials and endpoints.
	Couriers CouriersConfig `mapstructure:",squash"`

	// Proxy holds the outbound proxy used by the scraping tracking source.
	Proxy ProxyConfig `mapstructure:",squash"`

	// Notifications holds the customer-notification service configuration.
	Notifications NotificationsConfig `mapstructure:",squash"`

	// Tracking holds the polling source settings.
	Tracking TrackingConfig `mapstructure:",squash"`
}

// TrackingConfig holds the polling source settings. Webhooks are the primary
// tracking source; polling backfills at this cadence.
type TrackingConfig struct {
	// PollIntervalMinutes is the minutes between polling sweeps.
	PollIntervalMinutes int `mapstructure:"TRACKING_POLL_INTERVAL_MINUTES" default:"15"`
}

// OrdersConfig holds the credentials for the order-management API.
type OrdersConfig struct {
	// URL is the base URL of the order-management service.
	URL string `mapstructure:"ORDERS_URL" required:"true"`
	// APIKey is the public key for API access.
	APIKey string `mapstructure:"ORDERS_API_KEY" required:"true"`
	// APISecret is the secret key for API access.
	APISecret string `mapstructure:"ORDERS_API_SECRET" required:"true"`
}

// RankingConfig holds the cost/time weighting used to score quotes.
// Weights are policy, not engine constants, so tenants can retune them.
type RankingConfig struct {
	// CostWeight is the weight applied to the normalized cost score.
	CostWeight float64 `mapstructure:"RANKING_COST_WEIGHT" default:"0.6"`
	// TimeWeight is the weight applied to the normalized time score.
	TimeWeight float64 `mapstructure:"RANKING_TIME_WEIGHT" default:"0.4"`
}

// AggregatorConfig holds timeouts for the concurrent instant-quote fan-out.
type AggregatorConfig struct {
	// ProviderTimeoutSeconds caps each provider's quote call.
	ProviderTimeoutSeconds int `mapstructure:"AGGREGATOR_PROVIDER_TIMEOUT_SECONDS" default:"5"`
	// GlobalTimeoutSeconds caps the whole fan-out.
	GlobalTimeoutSeconds int `mapstructure:"AGGREGATOR_GLOBAL_TIMEOUT_SECONDS" default:"10"`
}

// CouriersConfig holds one credential block per provider adapter.
// Credentials are injected at adapter construction, never read from
// process-wide state inside adapter logic.
type CouriersConfig struct {
	GoSend      GoSendConfig      `mapstructure:",squash"`
	GrabExpress GrabExpressConfig `mapstructure:",squash"`
	Lalamove    LalamoveConfig    `mapstructure:",squash"`
	Borzo       BorzoConfig       `mapstructure:",squash"`
	KurirLokal  KurirLokalConfig  `mapstructure:",squash"`
}

// GoSendConfig holds GoSend (GoKilat) API settings.
type GoSendConfig struct {
	// BaseURL is the GoSend integration API base URL.
	BaseURL string `mapstructure:"GOSEND_BASE_URL" default:"https://integration-kilat-api.gojekapi.com"`
	// ClientID identifies the integration client.
	ClientID string `mapstructure:"GOSEND_CLIENT_ID" required:"true"`
	// PassKey is the shared secret sent on every request.
	PassKey string `mapstructure:"GOSEND_PASS_KEY" required:"true"`
}

// GrabExpressConfig holds GrabExpress API settings.
type GrabExpressConfig struct {
	// BaseURL is the GrabExpress API base URL.
	BaseURL string `mapstructure:"GRABEXPRESS_BASE_URL" default:"https://partner-api.grab.com"`
	// ClientID is the OAuth client id used for token exchange.
	ClientID string `mapstructure:"GRABEXPRESS_CLIENT_ID" required:"true"`
	// ClientSecret is the OAuth client secret used for token exchange.
	ClientSecret string `mapstructure:"GRABEXPRESS_CLIENT_SECRET" required:"true"`
}

// LalamoveConfig holds Lalamove API settings.
type LalamoveConfig struct {
	// BaseURL is the Lalamove API base URL.
	BaseURL string `mapstructure:"LALAMOVE_BASE_URL" default:"https://rest.lalamove.com"`
	// APIKey identifies the account; requests are signed with Secret.
	APIKey string `mapstructure:"LALAMOVE_API_KEY" required:"true"`
	// Secret is the HMAC signing secret.
	Secret string `mapstructure:"LALAMOVE_SECRET" required:"true"`
	// Market is the Lalamove market code (e.g., ID for Indonesia).
	Market string `mapstructure:"LALAMOVE_MARKET" default:"ID"`
}

// BorzoConfig holds Borzo (ex MrSpeedy) API settings.
type BorzoConfig struct {
	// BaseURL is the Borzo API base URL.
	BaseURL string `mapstructure:"BORZO_BASE_URL" default:"https://robotapi.borzodelivery.com"`
	// AuthToken is sent in the X-DV-Auth-Token header.
	AuthToken string `mapstructure:"BORZO_AUTH_TOKEN" required:"true"`
}

// KurirLokalConfig holds settings for the regional courier whose only public
// surface is its tracking web page (scraped, not called).
type KurirLokalConfig struct {
	// TrackingURL is the tracking page URL; %s is replaced by the tracking number.
	TrackingURL string `mapstructure:"KURIRLOKAL_TRACKING_URL" default:"https://kurirlokal.co.id/lacak?resi=%s"`
}

// NotificationsConfig holds the customer-notification service settings.
// When disabled, notification requests are logged instead of delivered.
type NotificationsConfig struct {
	// Enabled toggles delivery through the notification service.
	Enabled bool `mapstructure:"NOTIFICATIONS_ENABLED" default:"false"`
	// URL is the notification service base URL.
	URL string `mapstructure:"NOTIFICATIONS_URL"`
	// APIKey authenticates against the notification service.
	APIKey string `mapstructure:"NOTIFICATIONS_API_KEY"`
}

// ProxyConfig holds outbound proxy details for the scraping tracking source.
type ProxyConfig struct {
	// Enabled toggles proxy usage for scraping.
	Enabled bool `mapstructure:"PROXY_ENABLED" default:"false"`
	// Hostname is the proxy server hostname.
	Hostname string `mapstructure:"PROXY_HOSTNAME"`
	// Port is the proxy server port.
	Port int `mapstructure:"PROXY_PORT"`
	// Username is the proxy auth username.
	Username string `mapstructure:"PROXY_USERNAME"`
	// Password is the proxy auth password.
	Password string `mapstructure:"PROXY_PASSWORD"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"function":                          "FUNCTION",
	"log.level":                         "LOG_LEVEL",
	"http.timeout":                      "HTTP_TIMEOUT",
	"twentyfour.application_id":         "TWENTYFOUR_APP_ID",
	"twentyfour.username":               "TWENTYFOUR_USERNAME",
	"twentyfour.password":               "TWENTYFOUR_PASSWORD",
	"twentyfour.base_url":               "TWENTYFOUR_BASE_URL",
	"twentyfour.chunk_size":             "TWENTYFOUR_CHUNK_SIZE",
	"membership.should_invoice":         "SHOULD_INVOICE",
	"membership.should_create_customer": "SHOULD_CREATE_CUSTOMER",
	"vipps.merchant_serial_number":      "MERCHANT_SERIAL_NUMBER",
	"vipps.subscription_key":            "SUBSCRIPTION_KEY",
	"vipps.client_id":                   "CLIENT_ID",
	"vipps.client_secret":               "CLIENT_SECRET",
	"vipps.test_mode":                   "VIPPS_TEST_MODE",
	"vipps.callback_url":                "VIPPS_CALLBACK_URL",
	"vipps.base_url":                    "VIPPS_BASE_URL",
	"docstore.endpoint":                 "APPWRITE_ENDPOINT",
	"docstore.project":                  "APPWRITE_PROJECT",
	"docstore.api_key":                  "API_KEY",
	"webshop.base_url":                  "WC_BASE_URL",
	"webshop.consumer_key":              "WC_CONSUMER_KEY",
	"webshop.consumer_secret":           "WC_CONSUMER_SECRET",
	"openai.api_key":                    "OPENAI_API_KEY",
	"openai.base_url":                   "OPENAI_BASE_URL",
	"openai.model":                      "OPENAI_MODEL",
	"fx.base_url":                       "FX_BASE_URL",
	"azure.tenant_id":                   "AZURE_TENANT_ID",
	"azure.client_id":                   "AZURE_CLIENT_ID",
	"azure.client_secret":               "AZURE_CLIENT_SECRET",
	"azure.graph_url":                   "AZURE_GRAPH_URL",
	"azure.token_url":                   "AZURE_TOKEN_URL",
	"statushook.url":                    "STATUS_WEBHOOK_URL",
	"invoiceflow.url":                   "POWERAUTOMATE_URL",
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info"},
		HTTP: HTTPConfig{Timeout: 20 * time.Second},
		TwentyFour: TwentyFourConfig{
			ChunkSize: 1 << 20,
		},
		Vipps: VippsConfig{
			BaseURL: "https://api.vipps.no",
		},
		DocStore: DocStoreConfig{
			Endpoint: "https://appwrite.biso.no/v1",
			Project:  "biso",
		},
		Webshop: WebshopConfig{
			BaseURL: "https://biso.no",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-3.5-turbo-0125",
		},
		FX: FXConfig{
			BaseURL: "https://api.frankfurter.app",
		},
		Azure: AzureConfig{
			GraphURL: "https://graph.microsoft.com/v1.0",
		},
	}
}

// Load reads the defaults, then the YAML file named by CONFIG_FILE if set,
// then the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Vipps.TestMode && cfg.Vipps.BaseURL == Default().Vipps.BaseURL {
		cfg.Vipps.BaseURL = "https://apitest.vipps.no"
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("function", d.Function)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("twentyfour.chunk_size", d.TwentyFour.ChunkSize)
	v.SetDefault("vipps.base_url", d.Vipps.BaseURL)
	v.SetDefault("docstore.endpoint", d.DocStore.Endpoint)
	v.SetDefault("docstore.project", d.DocStore.Project)
	v.SetDefault("webshop.base_url", d.Webshop.BaseURL)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("fx.base_url", d.FX.BaseURL)
	v.SetDefault("azure.graph_url", d.Azure.GraphURL)
}

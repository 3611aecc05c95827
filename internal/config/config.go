// Package config loads the settings shared by every function.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full function configuration.
type Config struct {
	// Function selects the handler run by the Lambda entry point.
	Function string `yaml:"function" mapstructure:"function"`

	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	TwentyFour  TwentyFourConfig  `yaml:"twentyfour" mapstructure:"twentyfour"`
	Membership  MembershipConfig  `yaml:"membership" mapstructure:"membership"`
	Vipps       VippsConfig       `yaml:"vipps" mapstructure:"vipps"`
	DocStore    DocStoreConfig    `yaml:"docstore" mapstructure:"docstore"`
	Webshop     WebshopConfig     `yaml:"webshop" mapstructure:"webshop"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	FX          FXConfig          `yaml:"fx" mapstructure:"fx"`
	Azure       AzureConfig       `yaml:"azure" mapstructure:"azure"`
	StatusHook  StatusHookConfig  `yaml:"statushook" mapstructure:"statushook"`
	InvoiceFlow InvoiceFlowConfig `yaml:"invoiceflow" mapstructure:"invoiceflow"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// HTTPConfig holds the per-call timeout for outbound requests.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TwentyFourConfig holds the ERP credentials.
type TwentyFourConfig struct {
	ApplicationID string `yaml:"application_id" mapstructure:"application_id"`
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`
	// BaseURL replaces the production hosts of every service, for fakes.
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	ChunkSize int    `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// MembershipConfig switches the membership pipeline behaviour.
type MembershipConfig struct {
	ShouldInvoice        bool `yaml:"should_invoice" mapstructure:"should_invoice"`
	ShouldCreateCustomer bool `yaml:"should_create_customer" mapstructure:"should_create_customer"`
}

// VippsConfig holds the checkout API credentials.
type VippsConfig struct {
	MerchantSerialNumber string `yaml:"merchant_serial_number" mapstructure:"merchant_serial_number"`
	SubscriptionKey      string `yaml:"subscription_key" mapstructure:"subscription_key"`
	ClientID             string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret         string `yaml:"client_secret" mapstructure:"client_secret"`
	TestMode             bool   `yaml:"test_mode" mapstructure:"test_mode"`
	CallbackURL          string `yaml:"callback_url" mapstructure:"callback_url"`
	BaseURL              string `yaml:"base_url" mapstructure:"base_url"`
}

// DocStoreConfig points at the document database.
type DocStoreConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Project  string `yaml:"project" mapstructure:"project"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
}

// WebshopConfig holds the storefront API credentials.
type WebshopConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	ConsumerKey    string `yaml:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" mapstructure:"consumer_secret"`
}

// OpenAIConfig configures the completion API.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// FXConfig points at the exchange rate API.
type FXConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AzureConfig holds the directory application credentials.
type AzureConfig struct {
	TenantID     string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	GraphURL     string `yaml:"graph_url" mapstructure:"graph_url"`
	// TokenURL overrides the tenant token endpoint.
	TokenURL string `yaml:"token_url" mapstructure:"token_url"`
}

// StatusHookConfig points at the membership status webhook.
type StatusHookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// InvoiceFlowConfig points at the workflow that renders expense invoices.
type InvoiceFlowConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// Section names a group of settings a function depends on.
type Section string

// Sections checked by Validate.
const (
	SectionTwentyFour  Section = "twentyfour"
	SectionVipps       Section = "vipps"
	SectionDocStore    Section = "docstore"
	SectionWebshop     Section = "webshop"
	SectionOpenAI      Section = "openai"
	SectionAzure       Section = "azure"
	SectionStatusHook  Section = "statushook"
	SectionInvoiceFlow Section = "invoiceflow"
)

// Validate reports every missing setting of the given sections, by
// environment variable name.
func (c *Config) Validate(sections ...Section) error {
	var missing []string
	need := func(value, env string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}

	for _, s := range sections {
		switch s {
		case SectionTwentyFour:
			need(c.TwentyFour.ApplicationID, "TWENTYFOUR_APP_ID")
			need(c.TwentyFour.Username, "TWENTYFOUR_USERNAME")
			need(c.TwentyFour.Password, "TWENTYFOUR_PASSWORD")
		case SectionVipps:
			need(c.Vipps.MerchantSerialNumber, "MERCHANT_SERIAL_NUMBER")
			need(c.Vipps.SubscriptionKey, "SUBSCRIPTION_KEY")
			need(c.Vipps.ClientID, "CLIENT_ID")
			need(c.Vipps.ClientSecret, "CLIENT_SECRET")
			need(c.Vipps.CallbackURL, "VIPPS_CALLBACK_URL")
		case SectionDocStore:
			need(c.DocStore.Endpoint, "APPWRITE_ENDPOINT")
			need(c.DocStore.Project, "APPWRITE_PROJECT")
			need(c.DocStore.APIKey, "API_KEY")
		case SectionWebshop:
			need(c.Webshop.BaseURL, "WC_BASE_URL")
			need(c.Webshop.ConsumerKey, "WC_CONSUMER_KEY")
			need(c.Webshop.ConsumerSecret, "WC_CONSUMER_SECRET")
		case SectionOpenAI:
			need(c.OpenAI.APIKey, "OPENAI_API_KEY")
		case SectionAzure:
			need(c.Azure.TenantID, "AZURE_TENANT_ID")
			need(c.Azure.ClientID, "AZURE_CLIENT_ID")
			need(c.Azure.ClientSecret, "AZURE_CLIENT_SECRET")
		case SectionStatusHook:
			need(c.StatusHook.URL, "STATUS_WEBHOOK_URL")
		case SectionInvoiceFlow:
			need(c.InvoiceFlow.URL, "POWERAUTOMATE_URL")
		default:
			return fmt.Errorf("config: unknown section %q", s)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

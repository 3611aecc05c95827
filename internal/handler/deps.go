package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/biso/functions/internal/config"
	"github.com/biso/functions/internal/directory"
	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/fx"
	"github.com/biso/functions/internal/invoiceflow"
	"github.com/biso/functions/internal/llm"
	"github.com/biso/functions/internal/membership"
	"github.com/biso/functions/internal/statushook"
	"github.com/biso/functions/internal/twentyfour"
	"github.com/biso/functions/internal/vipps"
	"github.com/biso/functions/internal/webshop"
)

// Deps holds the clients the functions use. Clients are created up front
// but connect lazily, so a function only reaches the systems it calls.
type Deps struct {
	Config *config.Config
	Log    *slog.Logger

	// Store acts with the admin API key.
	Store docstore.Store
	// UserStore acts as the user a session JWT was issued to.
	UserStore func(jwt string) docstore.Store

	ERP       *twentyfour.Client
	Uploader  *twentyfour.Uploader
	Vipps     *vipps.Client
	LLM       *llm.Client
	FX        *fx.Client
	Shop      *webshop.Client
	Directory *directory.Client
	Status    *statushook.Notifier
	Invoices  *invoiceflow.Client
	Catalog   *membership.Catalog

	Now   func() time.Time
	NewID func() string
}

// NewDeps builds every client from cfg.
func NewDeps(cfg *config.Config, log *slog.Logger) *Deps {
	h := &http.Client{}
	timeout := cfg.HTTP.Timeout

	appwrite := docstore.New(cfg.DocStore.Endpoint, cfg.DocStore.Project,
		docstore.WithAPIKey(cfg.DocStore.APIKey),
		docstore.WithHTTPClient(h),
		docstore.WithTimeout(timeout),
	)

	erpOpts := []twentyfour.Option{twentyfour.WithHTTPClient(h), twentyfour.WithTimeout(timeout)}
	if cfg.TwentyFour.BaseURL != "" {
		erpOpts = append(erpOpts, twentyfour.WithEndpoints(twentyfour.EndpointsAt(cfg.TwentyFour.BaseURL)))
	}
	erp := twentyfour.New(twentyfour.Credentials{
		ApplicationID: cfg.TwentyFour.ApplicationID,
		Username:      cfg.TwentyFour.Username,
		Password:      cfg.TwentyFour.Password,
	}, erpOpts...)

	return &Deps{
		Config:    cfg,
		Log:       log,
		Store:     appwrite,
		UserStore: func(jwt string) docstore.Store { return appwrite.ForUser(jwt) },
		ERP:       erp,
		Uploader:  &twentyfour.Uploader{ChunkSize: cfg.TwentyFour.ChunkSize, Logger: log},
		Vipps: vipps.New(cfg.Vipps.BaseURL, vipps.Credentials{
			MerchantSerialNumber: cfg.Vipps.MerchantSerialNumber,
			SubscriptionKey:      cfg.Vipps.SubscriptionKey,
			ClientID:             cfg.Vipps.ClientID,
			ClientSecret:         cfg.Vipps.ClientSecret,
		}, cfg.Vipps.CallbackURL, vipps.WithHTTPClient(h), vipps.WithTimeout(timeout)),
		LLM:  llm.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, llm.WithHTTPClient(h), llm.WithTimeout(timeout)),
		FX:   fx.New(cfg.FX.BaseURL, h, timeout),
		Shop: webshop.New(cfg.Webshop.BaseURL, cfg.Webshop.ConsumerKey, cfg.Webshop.ConsumerSecret, h, timeout),
		Directory: directory.New(cfg.Azure.GraphURL, directory.Credentials{
			TenantID:     cfg.Azure.TenantID,
			ClientID:     cfg.Azure.ClientID,
			ClientSecret: cfg.Azure.ClientSecret,
			TokenURL:     cfg.Azure.TokenURL,
		}, h, timeout, log),
		Status:   statushook.New(cfg.StatusHook.URL, h, timeout, log),
		Invoices: invoiceflow.New(cfg.InvoiceFlow.URL, h, timeout),
		Catalog:  membership.Default(),
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// UseStore replaces both document stores with s.
func (d *Deps) UseStore(s docstore.Store) {
	d.Store = s
	d.UserStore = func(string) docstore.Store { return s }
}

func (d *Deps) withLog(log *slog.Logger) *Deps {
	cp := *d
	cp.Log = log
	return &cp
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) newID() string {
	if d.NewID == nil {
		return uuid.NewString()
	}
	return d.NewID()
}

// Package router maps function names to handlers and invokes deployed
// functions by name.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/biso/functions/internal/config"
	"github.com/biso/functions/internal/handler"
)

// Route is one function.
type Route struct {
	Name    string
	Handler handler.Func
	// Requires lists the config sections that must be set before the
	// function can run.
	Requires    []config.Section
	Description string
}

var routes = map[string]Route{}

func register(r Route) {
	if _, dup := routes[r.Name]; dup {
		panic("router: duplicate function " + r.Name)
	}
	routes[r.Name] = r
}

func init() {
	erp := []config.Section{config.SectionTwentyFour}
	erpStore := []config.Section{config.SectionTwentyFour, config.SectionDocStore}
	payments := []config.Section{config.SectionVipps, config.SectionDocStore}
	openai := []config.Section{config.SectionOpenAI}
	shop := []config.Section{config.SectionWebshop}
	store := []config.Section{config.SectionDocStore}

	register(Route{Name: "create-order", Handler: handler.CreateOrder, Requires: erp,
		Description: "invoice a paid membership checkout"})
	register(Route{Name: "create-membership-from-shop", Handler: handler.CreateMembershipFromShop, Requires: erp,
		Description: "invoice a webshop membership purchase"})
	register(Route{Name: "process-receipts", Handler: handler.ProcessReceipts, Requires: erpStore,
		Description: "upload an approved expense to the ERP"})
	register(Route{Name: "get-departments", Handler: handler.GetDepartments, Requires: erpStore,
		Description: "mirror ERP departments into the document store"})
	register(Route{Name: "verify-membership", Handler: handler.VerifyMembership, Requires: erpStore,
		Description: "find a student's active membership"})
	register(Route{Name: "vipps-payment", Handler: handler.VippsPayment, Requires: payments,
		Description: "start a checkout"})
	register(Route{Name: "vipps-callback", Handler: handler.VippsCallback, Requires: payments,
		Description: "reconcile a checkout with the provider"})
	register(Route{Name: "gpt-translate", Handler: handler.GPTTranslate, Requires: openai,
		Description: "translate text"})
	register(Route{Name: "extract-receipt", Handler: handler.ExtractReceipt, Requires: openai,
		Description: "read a receipt's fields from its text"})
	register(Route{Name: "expense-description", Handler: handler.ExpenseDescription, Requires: openai,
		Description: "describe an expense from its receipts"})
	register(Route{Name: "webshop-products", Handler: handler.WebshopProducts, Requires: shop,
		Description: "list storefront products"})
	register(Route{Name: "webshop-product", Handler: handler.WebshopProduct, Requires: shop,
		Description: "get one storefront product"})
	register(Route{Name: "get-board-members", Handler: handler.GetBoardMembers,
		Requires:    []config.Section{config.SectionAzure, config.SectionDocStore},
		Description: "list the directory users of a department"})
	register(Route{Name: "generate-invoice", Handler: handler.GenerateInvoice,
		Requires:    []config.Section{config.SectionDocStore, config.SectionInvoiceFlow},
		Description: "send an expense to the invoice workflow"})
	register(Route{Name: "election-vote", Handler: handler.ElectionVote, Requires: store,
		Description: "cast an election voter's ballots"})
	register(Route{Name: "create-user-doc", Handler: handler.CreateUserDoc, Requires: store,
		Description: "create the profile of a new account"})
}

// Lookup returns the function called name.
func Lookup(name string) (Route, bool) {
	r, ok := routes[name]
	return r, ok
}

// Names returns every function name, sorted.
func Names() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every function, sorted by name.
func All() []Route {
	out := make([]Route, 0, len(routes))
	for _, name := range Names() {
		out = append(out, routes[name])
	}
	return out
}

// LambdaAPI is the part of the Lambda client the Invoker uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, opts ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Invoker calls deployed functions. The deployed name of a function is
// its name with Prefix in front.
type Invoker struct {
	Lambda LambdaAPI
	Prefix string
}

// NewInvoker creates an Invoker from the default AWS configuration.
func NewInvoker(ctx context.Context, prefix string) (*Invoker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Invoker{Lambda: lambda.NewFromConfig(cfg), Prefix: prefix}, nil
}

// FunctionName is the deployed name of the function called name.
func (i *Invoker) FunctionName(name string) string {
	return i.Prefix + name
}

// Invoke calls the deployed function called name with body as a direct
// invocation payload and returns what it replied.
func (i *Invoker) Invoke(ctx context.Context, name string, body []byte) (json.RawMessage, error) {
	if _, ok := Lookup(name); !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		payload, err := json.Marshal(string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = payload
	}

	fn := i.FunctionName(name)
	result, err := i.Lambda.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: &fn,
		Payload:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", fn, err)
	}
	if result.FunctionError != nil {
		return nil, fmt.Errorf("lambda error: %s: %s", *result.FunctionError, result.Payload)
	}
	return result.Payload, nil
}

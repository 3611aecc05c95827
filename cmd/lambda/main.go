// Package main is the Lambda entry point. One binary serves every function;
// the FUNCTION setting picks which one this deployment runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/biso/functions/internal/config"
	"github.com/biso/functions/internal/handler"
	"github.com/biso/functions/internal/logging"
	"github.com/biso/functions/internal/router"
)

// app is one deployed function.
type app struct {
	route router.Route
	deps  *handler.Deps
	log   *slog.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	route, ok := router.Lookup(cfg.Function)
	if !ok {
		return nil, fmt.Errorf("unknown function %q (FUNCTION)", cfg.Function)
	}
	if err := cfg.Validate(route.Requires...); err != nil {
		return nil, err
	}
	log := logging.New(route.Name, cfg.Log.Level)
	return &app{route: route, deps: handler.NewDeps(cfg, log), log: log}, nil
}

func main() {
	a, err := newApp()
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	lambda.Start(a.handleRequest)
}

func (a *app) handleRequest(ctx context.Context, event json.RawMessage) (any, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return HandleWarmup(ctx, warmup)
	}

	req, kind, err := decodeEvent(event)
	if err != nil {
		a.log.ErrorContext(ctx, "bad event", "error", err)
		return encodeResponse(kind, handler.ErrorResponse(err))
	}
	resp := handler.Run(ctx, a.deps, a.route.Name, a.route.Handler, req)
	return encodeResponse(kind, resp)
}

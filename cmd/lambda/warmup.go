package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/biso/functions/internal/router"
)

const (
	// WarmupSource identifies scheduled warmup events.
	WarmupSource = "warmup"

	// WarmupDelay keeps this instance busy long enough for the instances it
	// invoked to start alongside it.
	WarmupDelay = 75 * time.Millisecond

	// MaxWarmupConcurrency caps the self-invocations of one warmup event.
	MaxWarmupConcurrency = 10
)

// WarmupEvent is the scheduled warmup payload.
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse reports how many instances a warmup event reached.
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// IsWarmupEvent reports whether event is a warmup event.
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var w WarmupEvent
	if err := json.Unmarshal(event, &w); err != nil || w.Source != WarmupSource {
		return nil, false
	}
	if w.Concurrency < 0 {
		w.Concurrency = 0
	}
	if w.Concurrency > MaxWarmupConcurrency {
		w.Concurrency = MaxWarmupConcurrency
	}
	return &w, true
}

// newLambdaClient is replaced in tests.
var newLambdaClient = func(ctx context.Context) (router.LambdaAPI, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return lambdasdk.NewFromConfig(cfg), nil
}

// HandleWarmup answers a warmup event and, when asked for concurrency,
// invokes this function that many more times so that many instances stay
// warm.
func HandleWarmup(ctx context.Context, warmup *WarmupEvent) (any, error) {
	warmed := 1
	if warmup.Concurrency > 0 {
		if client, err := newLambdaClient(ctx); err == nil {
			warmed += selfInvoke(ctx, client, os.Getenv("AWS_LAMBDA_FUNCTION_NAME"), warmup.Concurrency)
		}
	}

	time.Sleep(WarmupDelay)

	return map[string]any{
		"statusCode": 200,
		"body":       WarmupResponse{Status: "warm", InstancesWarmed: warmed},
	}, nil
}

// selfInvoke invokes function count times asynchronously and returns how
// many invocations were accepted. Child events carry no concurrency so
// they do not invoke further.
func selfInvoke(ctx context.Context, client router.LambdaAPI, function string, count int) int {
	if function == "" {
		return 0
	}
	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return 0
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(function),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return accepted
}

// Package proxy implements the HTTP interception proxy: the coordinator's
// catch-all route, which identifies the calling agent by peer IP,
// evaluates an optional Http::Request/Http::Response script against a
// scope, records task completion, and forwards the request upstream to
// the scenario's remote_server.
package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Scope is the set of named variables a script can read and, for
// Http::Response, mutate in place by writing back into the named scope
// variables. Go maps are reference types, so a script assigning
// scope["body"] = ... is visible to the caller after Eval returns.
type Scope map[string]interface{}

// scriptTimeout bounds every script evaluation. Scenario scripts are
// expected to be side-effect-free and fast, but a runaway script must not
// hang the proxy.
const scriptTimeout = 2 * time.Second

// Eval runs script, a Go source snippet defining
// func Run(scope map[string]interface{}) bool, against scope and returns
// its boolean result. Grounded on theRebelliousNerd-codenerd's
// internal/autopoiesis/yaegi_executor.go: a fresh yaegi interpreter loaded
// with only the standard library, no custom symbol registration needed
// because the scope itself is a plain map[string]interface{}.
func Eval(ctx context.Context, script string, scope Scope) (bool, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return false, fmt.Errorf("proxy script: load stdlib: %w", err)
	}

	if _, err := i.Eval(wrap(script)); err != nil {
		return false, fmt.Errorf("proxy script: compile: %w", err)
	}

	fn, err := i.Eval("main.Run")
	if err != nil {
		return false, fmt.Errorf("proxy script: missing Run function: %w", err)
	}
	run, ok := fn.Interface().(func(map[string]interface{}) bool)
	if !ok {
		return false, fmt.Errorf("proxy script: Run must be func(map[string]interface{}) bool")
	}

	ctx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	resultCh := make(chan bool, 1)
	go func() { resultCh <- run(scope) }()

	select {
	case v := <-resultCh:
		return v, nil
	case <-ctx.Done():
		return false, fmt.Errorf("proxy script: timed out")
	}
}

func wrap(script string) string {
	return "package main\n\n" + script
}

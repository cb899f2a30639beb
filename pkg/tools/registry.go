package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xhad/planfinder/internal/types"
	"github.com/xhad/planfinder/pkg/logger"
)

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	log   *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   logger.Named("tools"),
	}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tool names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Schemas() []Schema {
	names := r.List()
	schemas := make([]Schema, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			schemas = append(schemas, ToSchema(t))
		}
	}
	return schemas
}

// Dispatch runs the named tool and always answers with a string. Failures
// are rendered as "Error <failure>: <details>".
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) string {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		r.log.Warn("tool failed", "tool", name, "error", err)
		failure := "running " + name
		if f, ok := t.(Failer); ok {
			failure = f.Failure()
		}
		return fmt.Sprintf("Error %s: %v", failure, err)
	}
	r.log.Debug("tool succeeded", "tool", name)
	return out
}

// Deps are the services tools are built on. Nil services leave their tools
// unregistered.
type Deps struct {
	Finder    types.PlanFinder
	Advisor   Explainer
	Chain     ChainReader
	Functions []string
	Tokens    TokenLister
	Resolver  AddressResolver
}

// NewDefaultRegistry registers every tool whose dependencies are present.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	if deps.Finder != nil {
		r.Register(NewFindSimilarPlan(deps.Finder))
		if deps.Advisor != nil {
			r.Register(NewExplainPlan(deps.Finder, deps.Advisor))
		}
	}
	if deps.Chain != nil {
		r.Register(NewEthBalance(deps.Chain))
		r.Register(NewTokenBalance(deps.Chain))
		r.Register(NewTransactionStatus(deps.Chain))
		r.Register(NewRecentTransactions(deps.Chain))
		r.Register(NewGasFee(deps.Chain))
		r.Register(NewReadContract(deps.Chain, deps.Functions))
	}
	if deps.Tokens != nil {
		r.Register(NewEtherscanTokens(deps.Tokens))
		r.Register(NewEtherscanNFTs(deps.Tokens))
	}
	if deps.Resolver != nil {
		r.Register(NewLookupTokenAddress(deps.Resolver))
	}
	return r
}

// Package handlers implements the /v1 endpoint functions. Dependencies are
// package-level, wired once by Register at startup.
package handlers

import (
	"github.com/gorilla/mux"

	"chatrelay/pkg/delivery"
	"chatrelay/pkg/live"
	"chatrelay/pkg/registry"
)

var (
	pipe     *delivery.Pipeline
	reg      *registry.Registry
	liveOpts live.Options
)

// Register wires dependencies and registers every /v1 route on r.
func Register(r *mux.Router, p *delivery.Pipeline, rg *registry.Registry, opts live.Options) {
	pipe = p
	reg = rg
	liveOpts = opts

	registerMessages(r)
	registerConversations(r)
	registerLive(r)
}

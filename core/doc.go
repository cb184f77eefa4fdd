// Package core provides the foundational domain types and contracts used by
// capmesh. It defines:
//
//   - Agents (independently implemented capability providers with a uniform
//     processing entry point and owned lifecycle)
//   - Capabilities (named operations used as routing keys)
//   - Messages (the request/response/error/broadcast envelope exchanged
//     through the router)
//   - Sentinel errors shared across the orchestrator
//
// The package intentionally keeps implementation concerns (registry
// bookkeeping, routing, workflow interpretation) out of scope so that agent
// implementations depend only on small, stable contracts. Payloads are
// treated as opaque beyond the routing fields; each agent owns the schema of
// the capabilities it declares.
package core

// Package agent provides reusable building blocks for implementing the
// core.Agent contract.
//
// BaseAgent bundles the shared mechanics every capability provider needs:
// mutex-guarded metadata, heartbeat and status transitions, and a handler
// table keyed by capability name so implementations register plain Go
// functions per capability instead of writing their own dispatch. Embed it
// or use it directly via New.
//
// ModelAgent layers an llm.Model behind a text-generation capability,
// turning any configured provider (Anthropic, OpenAI, mock) into a
// registered agent.
package agent

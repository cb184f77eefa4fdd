// Package workflow interprets ordered sequences of capability invocations.
//
// A Definition names its steps; each step names a capability, an input
// payload and optionally an output variable. The engine executes steps
// strictly sequentially, substituting $variable references in later step
// inputs with the outputs earlier steps stored, and accumulates per-step
// results and errors into a single Result. Step failures are recorded, never
// thrown: the workflow always finishes and always reports a result.
//
// Definitions can be built in code or loaded from YAML via LoadDefinition.
package workflow

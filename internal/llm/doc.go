// Package llm defines the provider-agnostic chat model contract used by the
// agent runtime. Providers translate the Request/Response types, including
// tool call round trips, into their own wire formats.
package llm

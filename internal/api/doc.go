// Package api exposes the external HTTP surface: starting collection research
// sessions over server-sent events, saving collections explicitly, and looking
// up persisted records. Validation and authentication failures are reported
// before any stream begins.
package api

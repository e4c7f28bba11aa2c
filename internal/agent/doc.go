// Package agent contains the core orchestrator responsible for turning a
// user's NFT research request into a bounded tool-calling session. It
// coordinates upstream tool invocation, candidate extraction, and collection
// persistence, and emits the resulting client events in order.
package agent

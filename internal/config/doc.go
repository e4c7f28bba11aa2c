// Package config provides centralized configuration management for the
// NFTScout daemon. It loads a JSON configuration file, applies sensible
// defaults, and exposes typed sections for the server, storage, history,
// LLM, MCP, agent, and logging subsystems.
package config

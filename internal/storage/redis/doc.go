// Package redis provides a read-through cache in front of the collection
// repository. Cache failures are logged and bypassed so the authoritative
// store always stays reachable.
package redis

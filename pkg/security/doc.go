// Package security groups inbound credential handling. The auth subpackage
// validates API keys; upstream cookie material never passes through here,
// it stays inside the store and session pool.
package security

// Package server assembles the proxy: store, session pool, health loop,
// cookie importer, retry coordinator, quota limiter, and the HTTP surface
// with its middleware chain. It owns startup and ordered shutdown.
package server

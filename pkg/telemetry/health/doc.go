// Package health aggregates named component checks into the /health
// verdict. The database is a hard dependency; pool emptiness and an open
// circuit only degrade, answering 200 so orchestrators leave the process
// alone while it recovers.
package health

/*
main.go - Application entry point

PURPOSE:
  Starts the hospital ledger server and exposes maintenance commands.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve          Run the HTTP API (and the finance sync scheduler if enabled)
  seed           Apply the default chart of accounts and demo staff
  pending        Print the pending integration queues as JSON
  pending clear  Empty every pending queue
  sync           Post queued payroll and purchases to the ledger once

GLOBAL FLAGS:
  --config   YAML configuration file (default: built-in defaults)
  --db       SQLite database path, overrides store.path
             Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sync scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  hospital-ledger serve --config ./hospital-ledger.yaml
  hospital-ledger serve --db=":memory:" --port 3000
  hospital-ledger pending clear --db ./data/ledger.db

SEE ALSO:
  - config/config.go: Configuration file format
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

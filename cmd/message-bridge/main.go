// Package main is the entrypoint for the message-bridge.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/morezero/message-bridge/internal/bridge"
)

const usage = `Usage: message-bridge [command]

Commands:
  (default)   Start the bridge (NATS transport, handshake, HTTP health).
  migrate     Apply call-journal migrations only (does not start the bridge).
  help        Show this message.

Environment: NATS_URL, BRIDGE_CHANNEL, REQUEST_TIMEOUT, PROTOCOL_VERSION, PEER_VERSION_CONSTRAINT,
JOURNAL_DATABASE_URL (Postgres journal and migrate) or JOURNAL_SQLITE_PATH (file journal), MIGRATION_PATH,
HTTP_PORT, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if err := bridge.RunMigrate(); err != nil {
			log.Fatalf("message-bridge migrate: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "":
		// fall through to bridge
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := bridge.Run(); err != nil {
		log.Fatalf("message-bridge: fatal error: %v", err)
	}
}

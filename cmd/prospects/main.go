// Prospects stores candidate batches produced by recommendation generation
// runs and evicts stale candidates per surface and candidate type.
//
// Usage:
//
//	# Start the HTTP server and the retention scheduler
//	prospects run --config config.yaml
//
//	# Ingest a file of batch messages
//	prospects ingest --file batches.json
//
//	# Sweep one partition now
//	prospects sweep --surface NEW_TAB_EN_US --type global
//
//	# Sweep every configured partition
//	prospects sweep --all
//
//	# Look up one record
//	prospects get 0f1c2d8e-5c1f-4a57-9d3e-7f5b2a9c1e44
package main

import "os"

func main() {
	os.Exit(Execute())
}

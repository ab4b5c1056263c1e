// Glim serves GitHub repository cards as SVG images.
//
// Every card is addressed by its repository and theme, rendered once and
// kept in a two-tier cache (memory, then disk). GitHub is reached through
// an outcome cache and a circuit breaker, and clients are admitted by a
// global and a per-client token bucket.
//
// Usage:
//
//	# Start the server on 127.0.0.1:8080
//	glim serve
//
//	# Start with a configuration file and a GitHub token
//	GITHUB_TOKEN=... glim serve --config /etc/glim/config.yaml
//
//	# Render cards to disk without starting a server
//	glim card octocat/hello-world -o hello-world.svg
//
//	# Show version information
//	glim version
package main

import "os"

func main() {
	os.Exit(Execute())
}

// Command healthcheck probes the bot's HTTP server and exits non-zero when it
// is unhealthy. It is meant for container HEALTHCHECK directives.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	path := flag.String("path", "/healthz", "probe path, /healthz or /readyz")
	flag.Parse()

	os.Exit(probe(context.Background(), probeURL(os.Getenv("HTTP_ADDR"), *path)))
}

// probeURL turns a listen address such as ":8080" into a loopback URL.
func probeURL(addr, path string) string {
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func probe(ctx context.Context, url string) int {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}
	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

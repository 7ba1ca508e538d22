// Command healthcheck probes the gateway's health endpoint. It exists so a
// scratch container can declare a HEALTHCHECK without a shell or curl.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := os.Getenv("MPGATEWAY_LISTEN_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck failed:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, "healthcheck failed: status", resp.StatusCode)
		os.Exit(1)
	}
}

// healthprobe is a tiny deploy-time prober: it polls the server's health
// endpoint until it answers ok or the wait deadline passes. Exit code 0
// means healthy, 1 means the server never became ready.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	target := flag.String("target", "http://localhost:8080/healthz", "health endpoint to probe")
	interval := flag.Duration("interval", time.Second, "delay between probes")
	wait := flag.Duration("wait", 30*time.Second, "total time to wait for a healthy answer")
	flag.Parse()

	client := &fasthttp.Client{
		Name:            "chatrelay-healthprobe",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		MaxConnsPerHost: 1,
	}

	deadline := time.Now().Add(*wait)
	var lastErr error
	for time.Now().Before(deadline) {
		status, body, err := client.GetTimeout(nil, *target, 5*time.Second)
		if err == nil && status == fasthttp.StatusOK {
			fmt.Printf("healthy: %s %s\n", *target, string(body))
			os.Exit(0)
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", status)
		}
		time.Sleep(*interval)
	}
	fmt.Fprintf(os.Stderr, "unhealthy: %s (%v)\n", *target, lastErr)
	os.Exit(1)
}

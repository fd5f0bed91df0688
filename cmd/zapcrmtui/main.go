package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/zapcrm/internal/client"
	"github.com/matheus3301/zapcrm/internal/config"
	"github.com/matheus3301/zapcrm/internal/tui"
)

func main() {
	addrFlag := flag.String("addr", config.DefaultListen, "daemon address")
	tenantFlag := flag.String("tenant", "", "tenant id")
	flag.Parse()

	if *tenantFlag == "" {
		fmt.Fprintln(os.Stderr, "error: --tenant is required")
		os.Exit(1)
	}

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(*addrFlag) {
		fmt.Fprintln(os.Stderr, "daemon not running, starting...")
		if err := startDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(*addrFlag, 10*time.Second) {
			fmt.Fprintln(os.Stderr, "daemon did not become ready")
			os.Exit(1)
		}
	}

	c := client.New(*addrFlag)
	app := tui.NewApp(c, *addrFlag, *tenantFlag)
	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func probeDaemon(addr string) bool {
	httpc := &http.Client{Timeout: 2 * time.Second}
	resp, err := httpc.Get("http://" + addr + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func startDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	zapcrmd := filepath.Join(filepath.Dir(executable), "zapcrmd")
	if _, err := os.Stat(zapcrmd); err != nil {
		zapcrmd = "zapcrmd"
	}

	cmd := exec.Command(zapcrmd)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(addr string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(addr) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

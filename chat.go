package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"promptlab/audit"
	"promptlab/config"
	"promptlab/pipeline"
	"promptlab/providers"
	"promptlab/settings"
)

func main() {
	configPath := flag.String("config", "promptlab.yaml", "path to the YAML config file")
	tui := flag.Bool("tui", false, "open the terminal form instead of starting the servers")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	backend, err := settings.Open(cfg.Settings.Backend, cfg.Settings.Path, cfg.Settings.Secret)
	if err != nil {
		log.Fatalf("Failed to open settings backend: %v", err)
	}
	defer backend.Close()

	opts := []pipeline.Option{}
	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		auditLog, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			// auditing is best effort; the lab still works without it
			log.Printf("[AUDIT] Disabled: %v", err)
		} else {
			defer auditLog.Close()
			opts = append(opts, pipeline.WithRecorder(auditLog))
		}
	}

	p := pipeline.New(providers.NewClient(nil), opts...)

	if *tui {
		if err := newTerminalUI(p, backend, cfg.ProviderSettings()).Run(); err != nil {
			log.Fatalf("Terminal UI failed: %v", err)
		}
		return
	}

	if err := run(cfg, p, backend, auditLog); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}

// run starts every enabled server and blocks until a signal or the first failure
func run(cfg *config.Config, p *pipeline.Pipeline, backend settings.Backend, auditLog *audit.Log) error {
	applyServerPorts(cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := newRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	lab := newLabServer(p, backend, auditLog, limiter)
	lab.trustedProxies = proxySet(cfg.Server.TrustedProxies)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return limiter.run(ctx) })

	// DNS Server
	if DNS_PORT > 0 {
		front := newDNSFrontEnd(cfg.Server.DNSZone, p, cfg.ProviderSettings(), limiter)
		g.Go(func() error { return front.serveDNS(ctx, DNS_PORT) })
	}

	// HTTPS Server
	if HTTPS_PORT > 0 {
		certPath, keyPath, found := findSSLCertificates(cfg.Server)
		if !found {
			log.Printf("WARNING: SSL certificates not found, HTTPS disabled")
			log.Printf("Expected cert.pem and key.pem in working directory")
			log.Printf("Or valid Let's Encrypt certificates")
		} else {
			g.Go(func() error { return serveHTTP(ctx, lab.newHTTPServer(HTTPS_PORT), certPath, keyPath) })
		}
	}

	// HTTP Server
	if HTTP_PORT > 0 {
		g.Go(func() error { return serveHTTP(ctx, lab.newHTTPServer(HTTP_PORT), "", "") })
	}

	log.Printf("promptlab started (settings=%s, audit=%v)", backend.Name(), auditLog != nil)
	return g.Wait()
}

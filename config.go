package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"promptlab/config"
)

// Port configuration based on environment
var (
	HTTP_PORT  int
	HTTPS_PORT int
	DNS_PORT   int
)

func init() {
	// Check for high-port development mode
	if os.Getenv("HIGH_PORT_MODE") == "true" {
		log.Println("Running in HIGH_PORT_MODE - using non-privileged ports")
		HTTP_PORT = 8080  // Instead of 80
		HTTPS_PORT = 8443 // Instead of 443
		DNS_PORT = 8053   // Instead of 53
	} else {
		// Production mode - standard ports
		HTTP_PORT = 80
		HTTPS_PORT = 443
		DNS_PORT = 53
	}
}

// applyServerPorts lets the config file override the mode defaults.
// Negative ports disable a server.
func applyServerPorts(s config.ServerConfig) {
	HTTP_PORT = pickPort(s.HTTPPort, HTTP_PORT)
	HTTPS_PORT = pickPort(s.HTTPSPort, HTTPS_PORT)
	DNS_PORT = pickPort(s.DNSPort, DNS_PORT)

	log.Printf("Port configuration: HTTP=%d, HTTPS=%d, DNS=%d", HTTP_PORT, HTTPS_PORT, DNS_PORT)
}

func pickPort(configured, fallback int) int {
	switch {
	case configured < 0:
		return 0
	case configured > 0:
		return configured
	}
	return fallback
}

// certPair is one place a certificate and its key may live
type certPair struct {
	source    string
	cert, key string
}

// certCandidates lists where the HTTPS front end looks for a certificate,
// most specific first: the config file, the working directory, Let's Encrypt
// for the base domain and the DNS zone, then the usual /etc/ssl spots.
func certCandidates(s config.ServerConfig) []certPair {
	var pairs []certPair
	if s.CertFile != "" && s.KeyFile != "" {
		pairs = append(pairs, certPair{"config", s.CertFile, s.KeyFile})
	}
	pairs = append(pairs, certPair{"working directory", "cert.pem", "key.pem"})

	seen := map[string]bool{}
	for _, domain := range []string{s.BaseDomain, "lab." + s.BaseDomain, strings.TrimSuffix(s.DNSZone, ".")} {
		if domain == "" || domain == "lab." || seen[domain] {
			continue
		}
		seen[domain] = true
		dir := filepath.Join("/etc/letsencrypt/live", domain)
		pairs = append(pairs, certPair{"letsencrypt " + domain,
			filepath.Join(dir, "fullchain.pem"), filepath.Join(dir, "privkey.pem")})
	}

	return append(pairs,
		certPair{"/etc/ssl", "/etc/ssl/certs/cert.pem", "/etc/ssl/private/key.pem"},
		certPair{"/etc/ssl", "/etc/ssl/cert.pem", "/etc/ssl/key.pem"},
	)
}

// firstCertPair returns the first candidate whose files both exist
func firstCertPair(pairs []certPair) (certPair, bool) {
	for _, p := range pairs {
		if fileExists(p.cert) && fileExists(p.key) {
			return p, true
		}
		if p.source == "config" {
			log.Printf("Configured certificates %s / %s not found", p.cert, p.key)
		}
	}
	return certPair{}, false
}

// findSSLCertificates picks the certificate for the HTTPS front end
func findSSLCertificates(s config.ServerConfig) (certPath, keyPath string, found bool) {
	pair, ok := firstCertPair(certCandidates(s))
	if !ok {
		return "", "", false
	}
	log.Printf("Using certificates from %s (%s)", pair.source, pair.cert)
	return pair.cert, pair.key, true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

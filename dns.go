package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"promptlab/models"
	"promptlab/pipeline"
)

const (
	dnsDeadline    = 4 * time.Second // Safe middle ground for DNS clients
	dnsMaxAnswer   = 500
	dnsTXTChunk    = 255
	dnsAnswerTTL   = 60
	dnsPromptFrame = "Answer in 500 characters or less, no markdown formatting: "
)

// dnsFrontEnd answers TXT queries shaped <words-with-dashes>.<mode>.<zone>.
// using the server's own connection settings.
type dnsFrontEnd struct {
	zone     string // fully qualified, e.g. "lab.local."
	pipeline *pipeline.Pipeline
	settings models.ConnectionSettings
	limiter  *rateLimiter
}

func newDNSFrontEnd(zone string, p *pipeline.Pipeline, s models.ConnectionSettings, limiter *rateLimiter) *dnsFrontEnd {
	return &dnsFrontEnd{
		zone:     dns.Fqdn(strings.ToLower(zone)),
		pipeline: p,
		settings: s,
		limiter:  limiter,
	}
}

// serveDNS runs UDP and TCP servers on port until ctx is cancelled
func (d *dnsFrontEnd) serveDNS(ctx context.Context, port int) error {
	mux := dns.NewServeMux()
	mux.Handle(d.zone, d)

	servers := []*dns.Server{
		{Addr: fmt.Sprintf(":%d", port), Net: "udp", Handler: mux},
		{Addr: fmt.Sprintf(":%d", port), Net: "tcp", Handler: mux},
	}

	errCh := make(chan error, len(servers))
	log.Printf("[DNS] DNS server listening on :%d (udp+tcp) for zone %s", port, d.zone)
	for _, server := range servers {
		go func(server *dns.Server) {
			errCh <- server.ListenAndServe()
		}(server)
	}

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, server := range servers {
		if serr := server.ShutdownContext(shutdownCtx); serr != nil && debugMode {
			log.Printf("[DNS] %s shutdown: %v", server.Net, serr)
		}
	}
	return err
}

func (d *dnsFrontEnd) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	if !d.limiter.Allow(w.RemoteAddr().String()) {
		return
	}

	if len(r.Question) == 0 {
		return
	}

	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	var texts []string
	for _, q := range r.Question {
		if q.Qtype != dns.TypeTXT {
			continue
		}

		mode, prompt, err := parseDNSQuestion(q.Name, d.zone)
		if err != nil {
			if debugMode {
				log.Printf("[DNS] Rejected %s: %v", q.Name, err)
			}
			m.Rcode = dns.RcodeNameError
			continue
		}

		text := d.answer(mode, prompt)
		texts = append(texts, text)
		m.Answer = append(m.Answer, &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeTXT,
				Class:  dns.ClassINET,
				Ttl:    dnsAnswerTTL,
			},
			Txt: splitTXT(text, dnsTXTChunk),
		})
	}

	fitAnswers(m, texts, replyLimit(w, r))
	w.WriteMsg(m)
}

// replyLimit is the largest reply the client can take on this transport
func replyLimit(w dns.ResponseWriter, r *dns.Msg) int {
	if _, ok := w.RemoteAddr().(*net.TCPAddr); ok {
		return dns.MaxMsgSize
	}
	if opt := r.IsEdns0(); opt != nil && int(opt.UDPSize()) > dns.MinMsgSize {
		return int(opt.UDPSize())
	}
	return dns.MinMsgSize
}

// fitAnswers shortens the TXT answers, last first, until m fits in limit.
// texts[i] is the full text behind m.Answer[i]. Only when nothing is left to
// shorten does the reply fall back to being marked truncated.
func fitAnswers(m *dns.Msg, texts []string, limit int) {
	const minText = len("...")
	for i := len(texts) - 1; i >= 0 && m.Len() > limit; {
		over := m.Len() - limit
		if len(texts[i]) <= minText {
			i--
			continue
		}
		// each TXT string costs one length byte per chunk on top of its text
		keep := len(texts[i]) - over - over/dnsTXTChunk - 1
		if keep < minText {
			keep = minText
		}
		texts[i] = truncateUTF8(texts[i], keep)
		m.Answer[i].(*dns.TXT).Txt = splitTXT(texts[i], dnsTXTChunk)
	}
	if m.Len() > limit {
		m.Truncate(limit)
	}
}

// answer runs the pipeline under the DNS deadline and shapes the text for TXT
func (d *dnsFrontEnd) answer(mode models.Mode, prompt string) string {
	ctx, cancel := context.WithTimeout(context.Background(), dnsDeadline)
	defer cancel()

	// general questions get the brevity frame; summary and translation keep their own prompts
	if mode == models.ModeGeneral {
		prompt = dnsPromptFrame + prompt
	}

	res := d.pipeline.Submit(ctx, pipeline.Submission{
		Mode:     mode,
		Prompt:   prompt,
		Settings: d.settings,
		Debug:    debugMode,
	})
	if debugMode && res.Trace != nil {
		for _, line := range res.Trace.Lines() {
			log.Printf("[DNS] %s", line)
		}
	}

	text := res.Answer
	if !res.Outcome.OK() {
		if ctx.Err() != nil {
			text = "Request timed out"
		} else {
			text = res.Status
		}
	}
	return truncateUTF8(flattenWhitespace(text), dnsMaxAnswer)
}

// parseDNSQuestion splits "what-is-go.general.lab.local." into its mode and
// prompt. The mode label is required; dashes in the first labels become spaces.
func parseDNSQuestion(name, zone string) (models.Mode, string, error) {
	name = strings.ToLower(dns.Fqdn(name))
	zone = strings.ToLower(dns.Fqdn(zone))
	if !dns.IsSubDomain(zone, name) || name == zone {
		return "", "", fmt.Errorf("%s is outside zone %s", name, zone)
	}

	rest := strings.TrimSuffix(strings.TrimSuffix(name, zone), ".")
	labels := dns.SplitDomainName(rest)
	if len(labels) < 2 {
		return "", "", fmt.Errorf("expected <prompt>.<mode>.%s", zone)
	}

	mode, err := models.ParseMode(labels[len(labels)-1])
	if err != nil {
		return "", "", err
	}
	words := strings.Join(labels[:len(labels)-1], " ")
	prompt := strings.TrimSpace(strings.ReplaceAll(words, "-", " "))
	return mode, prompt, nil
}

func flattenWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

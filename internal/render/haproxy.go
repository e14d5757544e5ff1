package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/provisor/provisor/internal/schema"
)

// renderProxy emits HAProxy configuration text. Section order is fixed
// (global, defaults, frontend, backend, stats) and list options are emitted
// one per line in the order given. Empty lists produce no stanza.
func renderProxy(opts schema.Options) (string, error) {
	var b strings.Builder

	b.WriteString("global\n")
	fmt.Fprintf(&b, "    maxconn %d\n", opts.Int("maxconn"))
	b.WriteString("    log stdout format raw local0\n")
	b.WriteString("\n")

	b.WriteString("defaults\n")
	fmt.Fprintf(&b, "    mode %s\n", opts.String("frontend.mode"))
	b.WriteString("    log global\n")
	fmt.Fprintf(&b, "    timeout connect %s\n", haproxyDuration(opts.Duration("timeout.connect")))
	fmt.Fprintf(&b, "    timeout client %s\n", haproxyDuration(opts.Duration("timeout.client")))
	fmt.Fprintf(&b, "    timeout server %s\n", haproxyDuration(opts.Duration("timeout.server")))
	b.WriteString("\n")

	backendName, err := singleLine("proxy", "backend.name", opts.String("backend.name"))
	if err != nil {
		return "", err
	}

	b.WriteString("frontend public\n")
	bind := fmt.Sprintf("    bind *:%d", opts.Int("frontend.port"))
	switch opts.String("tls.mode") {
	case schema.TLSModeACME:
		fmt.Fprintf(&b, "%s ssl crt %s/acme\n", bind, opts.String("tls.certDir"))
	case schema.TLSModeSelfSigned:
		fmt.Fprintf(&b, "%s ssl crt %s/selfsigned.pem\n", bind, opts.String("tls.certDir"))
	default:
		b.WriteString(bind + "\n")
	}

	for i, rule := range opts.StringList("acl.rules") {
		line, err := singleLine("proxy", fmt.Sprintf("acl.rules[%d]", i), rule)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "    acl %s\n", line)
	}

	fmt.Fprintf(&b, "    default_backend %s\n", backendName)
	b.WriteString("\n")

	fmt.Fprintf(&b, "backend %s\n", backendName)
	fmt.Fprintf(&b, "    balance %s\n", opts.String("backend.balance"))
	for i, server := range opts.StringList("backend.servers") {
		line, err := singleLine("proxy", fmt.Sprintf("backend.servers[%d]", i), server)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "    server %s check\n", line)
	}

	if opts.Bool("stats.enable") {
		statsURI, err := singleLine("proxy", "stats.uri", opts.String("stats.uri"))
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString("listen stats\n")
		fmt.Fprintf(&b, "    bind *:%d\n", opts.Int("stats.port"))
		b.WriteString("    stats enable\n")
		fmt.Fprintf(&b, "    stats uri %s\n", statsURI)
	}

	return b.String(), nil
}

// haproxyDuration formats a duration in milliseconds, the one unit HAProxy
// accepts for every timeout directive.
func haproxyDuration(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

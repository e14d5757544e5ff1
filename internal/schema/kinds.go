package schema

import (
	"fmt"
	"time"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
)

// Registry maps service kinds to their option schemas.
type Registry struct {
	schemas map[model.ServiceKind]*Schema
}

// NewRegistry returns a registry preloaded with the built-in kind schemas.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[model.ServiceKind]*Schema)}
	for _, s := range builtinSchemas() {
		r.schemas[s.Kind] = s
	}
	return r
}

// Get returns the schema for a kind.
func (r *Registry) Get(kind model.ServiceKind) (*Schema, error) {
	s, ok := r.schemas[kind]
	if !ok {
		return nil, errors.NewInternalError(
			fmt.Sprintf("no option schema registered for kind %q", kind), nil)
	}
	return s, nil
}

// Validate validates raw options against the schema for the given kind.
func (r *Registry) Validate(kind model.ServiceKind, raw map[string]interface{}) (Options, error) {
	s, err := r.Get(kind)
	if err != nil {
		return Options{}, err
	}
	return s.Validate(raw)
}

// Kinds returns the registered kinds in the model's stable order.
func (r *Registry) Kinds() []model.ServiceKind {
	var kinds []model.ServiceKind
	for _, k := range model.ServiceKinds() {
		if _, ok := r.schemas[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func builtinSchemas() []*Schema {
	return []*Schema{
		proxySchema(),
		idsSchema(),
		bouncerSchema(),
		queueSchema(),
		backendSchema(),
	}
}

// TLS modes for the proxy frontend. The enum makes ACME and self-signed
// mutually exclusive by construction.
const (
	TLSModeOff        = "off"
	TLSModeACME       = "acme"
	TLSModeSelfSigned = "selfsigned"
)

func proxySchema() *Schema {
	fields := []Field{
		{Path: "frontend.port", Type: TypeInt, Required: true, Doc: "listen port for the public frontend"},
		{Path: "frontend.mode", Type: TypeEnum, Enum: []string{"http", "tcp"}, Default: "http"},
		{Path: "maxconn", Type: TypeInt, Default: 2000},
		{Path: "timeout.connect", Type: TypeDuration, Default: 5 * time.Second},
		{Path: "timeout.client", Type: TypeDuration, Default: 50 * time.Second},
		{Path: "timeout.server", Type: TypeDuration, Default: 50 * time.Second},
		{Path: "tls.mode", Type: TypeEnum, Enum: []string{TLSModeOff, TLSModeACME, TLSModeSelfSigned}, Default: TLSModeOff},
		{Path: "tls.certDir", Type: TypeString, Default: "/var/lib/provisor/certs"},
		{Path: "acme.email", Type: TypeString},
		{Path: "acme.domains", Type: TypeList, Elem: TypeString},
		{Path: "acme.acceptTerms", Type: TypeBool, Default: false},
		{Path: "acl.rules", Type: TypeList, Elem: TypeString, Doc: "raw ACL lines, emitted in order"},
		{Path: "backend.name", Type: TypeString, Default: "app"},
		{Path: "backend.balance", Type: TypeEnum, Enum: []string{"roundrobin", "leastconn", "source"}, Default: "roundrobin"},
		{Path: "backend.servers", Type: TypeList, Elem: TypeString, Required: true, Doc: "one \"name addr:port\" entry per upstream"},
		{Path: "stats.enable", Type: TypeBool, Default: false},
		{Path: "stats.port", Type: TypeInt},
		{Path: "stats.uri", Type: TypeString, Default: "/stats"},
	}

	constraints := []Constraint{
		{
			Name:    "acme-requires-email",
			Message: "tls.mode \"acme\" requires a non-empty acme.email",
			Check: func(o Options) bool {
				return o.String("tls.mode") != TLSModeACME || o.String("acme.email") != ""
			},
		},
		{
			Name:    "acme-requires-terms",
			Message: "tls.mode \"acme\" requires acme.acceptTerms to be true",
			Check: func(o Options) bool {
				return o.String("tls.mode") != TLSModeACME || o.Bool("acme.acceptTerms")
			},
		},
		{
			Name:    "acme-requires-domains",
			Message: "tls.mode \"acme\" requires at least one entry in acme.domains",
			Check: func(o Options) bool {
				return o.String("tls.mode") != TLSModeACME || len(o.StringList("acme.domains")) > 0
			},
		},
		{
			Name:    "stats-port-required",
			Message: "stats.enable requires stats.port",
			Check: func(o Options) bool {
				return !o.Bool("stats.enable") || o.Int("stats.port") > 0
			},
		},
	}

	return New(model.KindProxy, fields, constraints)
}

func idsSchema() *Schema {
	fields := []Field{
		{Path: "lapi.listen", Type: TypeString, Default: "127.0.0.1"},
		{Path: "lapi.port", Type: TypeInt, Default: 8080},
		{Path: "logLevel", Type: TypeEnum, Enum: []string{"trace", "debug", "info", "warning", "error"}, Default: "info"},
		{Path: "collections", Type: TypeList, Elem: TypeString, Doc: "hub collections to install"},
		{Path: "db.type", Type: TypeEnum, Enum: []string{"sqlite", "postgresql"}, Default: "sqlite"},
		{Path: "db.path", Type: TypeString, Default: "/var/lib/crowdsec/data/crowdsec.db"},
		{Path: "db.host", Type: TypeString},
		{Path: "db.name", Type: TypeString},
		{Path: "prometheus.enable", Type: TypeBool, Default: false},
		{Path: "prometheus.port", Type: TypeInt, Default: 6060},
	}

	constraints := []Constraint{
		{
			Name:    "postgres-requires-host",
			Message: "db.type \"postgresql\" requires db.host and db.name",
			Check: func(o Options) bool {
				return o.String("db.type") != "postgresql" ||
					(o.String("db.host") != "" && o.String("db.name") != "")
			},
		},
	}

	return New(model.KindIDS, fields, constraints)
}

func bouncerSchema() *Schema {
	fields := []Field{
		{Path: "mode", Type: TypeEnum, Enum: []string{"nftables", "iptables"}, Required: true},
		{Path: "denyAction", Type: TypeEnum, Enum: []string{"DROP", "REJECT"}, Default: "DROP"},
		{Path: "denyLog", Type: TypeBool, Default: false},
		{Path: "updateFrequency", Type: TypeDuration, Default: 10 * time.Second},
		{Path: "lapi.url", Type: TypeString, Default: "http://127.0.0.1:8080/"},
		{Path: "lapi.key", Type: TypeString, Required: true},
		{Path: "blacklists.ipv4", Type: TypeString, Default: "crowdsec-blacklists"},
		{Path: "blacklists.ipv6", Type: TypeString, Default: "crowdsec6-blacklists"},
	}

	constraints := []Constraint{
		{
			Name:    "lapi-key-required",
			Message: "lapi.key must not be empty",
			Check: func(o Options) bool {
				return o.String("lapi.key") != ""
			},
		},
	}

	return New(model.KindBouncer, fields, constraints)
}

func queueSchema() *Schema {
	fields := []Field{
		{Path: "listener.address", Type: TypeString, Default: "127.0.0.1"},
		{Path: "listener.port", Type: TypeInt, Default: 5672},
		{Path: "management.enable", Type: TypeBool, Default: false},
		{Path: "management.port", Type: TypeInt, Default: 15672},
		{Path: "vhost", Type: TypeString, Default: "/"},
		{Path: "defaultUser", Type: TypeString, Default: "guest"},
		{Path: "memoryHighWatermark", Type: TypeString, Default: "0.4", Doc: "relative watermark passed through verbatim"},
		{Path: "disk.freeLimit", Type: TypeString, Default: "50MB"},
		{Path: "plugins", Type: TypeList, Elem: TypeString},
	}

	constraints := []Constraint{
		{
			Name:    "management-port-distinct",
			Message: "management.port must differ from listener.port",
			Check: func(o Options) bool {
				return !o.Bool("management.enable") || o.Int("management.port") != o.Int("listener.port")
			},
		},
	}

	return New(model.KindQueue, fields, constraints)
}

func backendSchema() *Schema {
	fields := []Field{
		{Path: "app.module", Type: TypeString, Required: true, Doc: "WSGI module, e.g. project.wsgi:application"},
		{Path: "bind.address", Type: TypeString, Default: "127.0.0.1"},
		{Path: "bind.port", Type: TypeInt, Required: true},
		{Path: "workers", Type: TypeInt, Default: 2},
		{Path: "worker.class", Type: TypeEnum, Enum: []string{"sync", "gevent", "gthread"}, Default: "sync"},
		{Path: "timeout.graceful", Type: TypeDuration, Default: 30 * time.Second},
		{Path: "user", Type: TypeString, Default: "www-data"},
		{Path: "workingDir", Type: TypeString, Required: true},
		{Path: "env", Type: TypeList, Elem: TypeString, Doc: "KEY=VALUE pairs"},
		{Path: "celery.enable", Type: TypeBool, Default: false},
		{Path: "celery.app", Type: TypeString},
		{Path: "celery.queues", Type: TypeList, Elem: TypeString},
	}

	constraints := []Constraint{
		{
			Name:    "celery-requires-queues",
			Message: "celery.enable requires at least one entry in celery.queues",
			Check: func(o Options) bool {
				return !o.Bool("celery.enable") || len(o.StringList("celery.queues")) > 0
			},
		},
		{
			Name:    "celery-requires-app",
			Message: "celery.enable requires celery.app",
			Check: func(o Options) bool {
				return !o.Bool("celery.enable") || o.String("celery.app") != ""
			},
		},
	}

	return New(model.KindBackend, fields, constraints)
}

package schema

import (
	"testing"
	"time"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	fields := []Field{
		{Path: "listen.port", Type: TypeInt, Required: true},
		{Path: "listen.address", Type: TypeString, Default: "127.0.0.1"},
		{Path: "mode", Type: TypeEnum, Enum: []string{"http", "tcp"}, Default: "http"},
		{Path: "verbose", Type: TypeBool, Default: false},
		{Path: "interval", Type: TypeDuration, Default: 10 * time.Second},
		{Path: "hosts", Type: TypeList, Elem: TypeString},
		{Path: "weights", Type: TypeList, Elem: TypeInt},
	}
	constraints := []Constraint{
		{
			Name:    "verbose-needs-hosts",
			Message: "verbose requires at least one host",
			Check: func(o Options) bool {
				return !o.Bool("verbose") || len(o.StringList("hosts")) > 0
			},
		},
	}
	return New(model.KindProxy, fields, constraints)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]interface{}
		wantErr   errors.Kind
		errSubstr string
		validate  func(*testing.T, Options)
	}{
		{
			name: "valid nested options with defaults applied",
			raw: map[string]interface{}{
				"listen": map[string]interface{}{"port": 8080},
			},
			validate: func(t *testing.T, o Options) {
				assert.Equal(t, 8080, o.Int("listen.port"))
				assert.Equal(t, "127.0.0.1", o.String("listen.address"))
				assert.Equal(t, "http", o.String("mode"))
				assert.Equal(t, 10*time.Second, o.Duration("interval"))
				assert.False(t, o.Has("hosts"))
			},
		},
		{
			name: "dotted keys accepted literally",
			raw: map[string]interface{}{
				"listen.port": 9090,
				"mode":        "tcp",
			},
			validate: func(t *testing.T, o Options) {
				assert.Equal(t, 9090, o.Int("listen.port"))
				assert.Equal(t, "tcp", o.String("mode"))
			},
		},
		{
			name: "unknown option fails closed naming the key",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"bogus":       true,
			},
			wantErr:   errors.KindUnknownOption,
			errSubstr: `"bogus"`,
		},
		{
			name: "unknown nested option reports dotted path",
			raw: map[string]interface{}{
				"listen": map[string]interface{}{"port": 8080, "backlog": 128},
			},
			wantErr:   errors.KindUnknownOption,
			errSubstr: `"listen.backlog"`,
		},
		{
			name: "type mismatch names expected and actual",
			raw: map[string]interface{}{
				"listen.port": "not-a-port",
			},
			wantErr:   errors.KindTypeMismatch,
			errSubstr: "expects int",
		},
		{
			name: "invalid enum lists allowed values",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"mode":        "udp",
			},
			wantErr:   errors.KindInvalidEnumValue,
			errSubstr: "http, tcp",
		},
		{
			name:    "missing required option",
			raw:     map[string]interface{}{"mode": "http"},
			wantErr: errors.KindMissingRequired,
		},
		{
			name: "duration parsed from string",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"interval":    "250ms",
			},
			validate: func(t *testing.T, o Options) {
				assert.Equal(t, 250*time.Millisecond, o.Duration("interval"))
			},
		},
		{
			name: "bad duration is a type mismatch",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"interval":    "soon",
			},
			wantErr: errors.KindTypeMismatch,
		},
		{
			name: "string list coerced from interface slice",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"hosts":       []interface{}{"a", "b"},
			},
			validate: func(t *testing.T, o Options) {
				assert.Equal(t, []string{"a", "b"}, o.StringList("hosts"))
			},
		},
		{
			name: "int list rejects non-int element",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"weights":     []interface{}{1, "two"},
			},
			wantErr:   errors.KindTypeMismatch,
			errSubstr: "weights[1]",
		},
		{
			name: "constraint violation carries name and message",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"verbose":     true,
			},
			wantErr:   errors.KindConstraintViolated,
			errSubstr: "verbose-needs-hosts",
		},
		{
			name: "explicit null is unset, default applies",
			raw: map[string]interface{}{
				"listen.port":    8080,
				"listen.address": nil,
			},
			validate: func(t *testing.T, o Options) {
				assert.Equal(t, "127.0.0.1", o.String("listen.address"))
			},
		},
		{
			name: "explicit null on required option is missing, not mismatched",
			raw: map[string]interface{}{
				"listen.port": nil,
			},
			wantErr:   errors.KindMissingRequired,
			errSubstr: `"listen.port"`,
		},
		{
			name: "nulled section unsets everything under it",
			raw: map[string]interface{}{
				"listen": nil,
			},
			wantErr: errors.KindMissingRequired,
		},
		{
			name: "null on an unknown key still fails closed",
			raw: map[string]interface{}{
				"listen.port": 8080,
				"bogus":       nil,
			},
			wantErr:   errors.KindUnknownOption,
			errSubstr: `"bogus"`,
		},
	}

	s := testSchema()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := s.Validate(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, tt.wantErr), "expected kind %s, got: %v", tt.wantErr, err)
				if tt.errSubstr != "" {
					assert.Contains(t, err.Error(), tt.errSubstr)
				}
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, opts)
			}
		})
	}
}

func TestValidateIsPure(t *testing.T) {
	s := testSchema()
	raw := map[string]interface{}{
		"listen": map[string]interface{}{"port": 8080},
	}

	_, err := s.Validate(raw)
	require.NoError(t, err)

	// Input is not mutated: defaults do not leak back into raw.
	assert.Equal(t, map[string]interface{}{
		"listen": map[string]interface{}{"port": 8080},
	}, raw)
}

func TestOptionsPaths(t *testing.T) {
	s := testSchema()
	opts, err := s.Validate(map[string]interface{}{
		"hosts":       []interface{}{"a"},
		"listen.port": 8080,
	})
	require.NoError(t, err)

	// Declaration order, defaults included, unset options excluded.
	assert.Equal(t, []string{
		"listen.port", "listen.address", "mode", "verbose", "interval", "hosts",
	}, opts.Paths(s))
}

func TestResolve(t *testing.T) {
	base := map[string]interface{}{
		"listen": map[string]interface{}{"port": 8080, "address": "0.0.0.0"},
		"mode":   "http",
	}
	overrides := map[string]interface{}{
		"listen.port": 9090,
	}

	resolved := Resolve(base, overrides)

	assert.Equal(t, 9090, resolved["listen.port"])
	assert.Equal(t, "0.0.0.0", resolved["listen.address"])
	assert.Equal(t, "http", resolved["mode"])

	// Single-pass resolution: the result validates like any raw set.
	opts, err := testSchema().Validate(resolved)
	require.NoError(t, err)
	assert.Equal(t, 9090, opts.Int("listen.port"))

	// Neither input mutated.
	assert.Equal(t, 8080, base["listen"].(map[string]interface{})["port"])
	assert.Equal(t, 9090, overrides["listen.port"])
}

func TestRegistryBuiltins(t *testing.T) {
	registry := NewRegistry()

	assert.Equal(t, model.ServiceKinds(), registry.Kinds())

	for _, kind := range registry.Kinds() {
		s, err := registry.Get(kind)
		require.NoError(t, err)
		assert.NotEmpty(t, s.Fields)
	}
}

func TestBouncerSchemaScenario(t *testing.T) {
	registry := NewRegistry()

	opts, err := registry.Validate(model.KindBouncer, map[string]interface{}{
		"mode":       "nftables",
		"denyAction": "DROP",
		"lapi":       map[string]interface{}{"key": "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, "nftables", opts.String("mode"))
	assert.Equal(t, "DROP", opts.String("denyAction"))
	assert.Equal(t, 10*time.Second, opts.Duration("updateFrequency"))
}

func TestProxyACMEConstraints(t *testing.T) {
	registry := NewRegistry()

	valid := map[string]interface{}{
		"frontend.port":   443,
		"backend.servers": []interface{}{"app1 127.0.0.1:8000"},
	}

	t.Run("acme without email fails citing the rule", func(t *testing.T) {
		raw := Resolve(valid, map[string]interface{}{
			"tls.mode":         "acme",
			"acme.domains":     []interface{}{"example.org"},
			"acme.acceptTerms": true,
		})
		_, err := registry.Validate(model.KindProxy, raw)
		require.Error(t, err)
		assert.True(t, errors.IsConstraintViolationError(err))
		assert.Contains(t, err.Error(), "acme-requires-email")
	})

	t.Run("acme with null email fails citing the rule", func(t *testing.T) {
		raw := Resolve(valid, map[string]interface{}{
			"tls.mode":         "acme",
			"acme.email":       nil,
			"acme.domains":     []interface{}{"example.org"},
			"acme.acceptTerms": true,
		})
		_, err := registry.Validate(model.KindProxy, raw)
		require.Error(t, err)
		assert.True(t, errors.IsConstraintViolationError(err), "got: %v", err)
		assert.Contains(t, err.Error(), "acme-requires-email")
	})

	t.Run("acme with nulled acme section fails citing the rule", func(t *testing.T) {
		raw := Resolve(valid, map[string]interface{}{
			"tls.mode": "acme",
			"acme":     nil,
		})
		_, err := registry.Validate(model.KindProxy, raw)
		require.Error(t, err)
		assert.True(t, errors.IsConstraintViolationError(err), "got: %v", err)
		assert.Contains(t, err.Error(), "acme-requires-email")
	})

	t.Run("acme without terms acceptance fails", func(t *testing.T) {
		raw := Resolve(valid, map[string]interface{}{
			"tls.mode":     "acme",
			"acme.email":   "ops@example.org",
			"acme.domains": []interface{}{"example.org"},
		})
		_, err := registry.Validate(model.KindProxy, raw)
		require.Error(t, err)
		assert.True(t, errors.IsConstraintViolationError(err))
		assert.Contains(t, err.Error(), "acme-requires-terms")
	})

	t.Run("complete acme settings validate", func(t *testing.T) {
		raw := Resolve(valid, map[string]interface{}{
			"tls.mode":         "acme",
			"acme.email":       "ops@example.org",
			"acme.domains":     []interface{}{"example.org"},
			"acme.acceptTerms": true,
		})
		_, err := registry.Validate(model.KindProxy, raw)
		require.NoError(t, err)
	})
}

package render

import (
	"fmt"
	"strings"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/schema"
	"gopkg.in/yaml.v3"
)

// YAML output is built from explicit yaml.Node trees rather than maps, so
// key order follows the declared option structure and renders are
// byte-stable across runs.

func renderIDS(opts schema.Options) (string, error) {
	root := newMapping()

	common := newMapping()
	appendScalarPair(common, "log_media", "stdout")
	appendScalarPair(common, "log_level", opts.String("logLevel"))
	appendPair(root, "common", common)

	dbConfig := newMapping()
	appendScalarPair(dbConfig, "type", opts.String("db.type"))
	if opts.String("db.type") == "sqlite" {
		appendScalarPair(dbConfig, "db_path", opts.String("db.path"))
	} else {
		appendScalarPair(dbConfig, "host", opts.String("db.host"))
		appendScalarPair(dbConfig, "db_name", opts.String("db.name"))
	}
	appendPair(root, "db_config", dbConfig)

	api := newMapping()
	server := newMapping()
	appendScalarPair(server, "listen_uri",
		fmt.Sprintf("%s:%d", opts.String("lapi.listen"), opts.Int("lapi.port")))
	appendPair(api, "server", server)
	appendPair(root, "api", api)

	if collections := opts.StringList("collections"); len(collections) > 0 {
		hub := newMapping()
		appendPair(hub, "collections", newStringSequence(collections))
		appendPair(root, "hub", hub)
	}

	if opts.Bool("prometheus.enable") {
		prometheus := newMapping()
		appendScalarPair(prometheus, "enabled", "true")
		appendScalarPair(prometheus, "listen_port", fmt.Sprintf("%d", opts.Int("prometheus.port")))
		appendPair(root, "prometheus", prometheus)
	}

	return marshalNode(root)
}

func renderBouncer(opts schema.Options) (string, error) {
	root := newMapping()

	appendScalarPair(root, "mode", opts.String("mode"))
	appendScalarPair(root, "update_frequency", opts.Duration("updateFrequency").String())
	appendScalarPair(root, "log_mode", "stdout")
	appendScalarPair(root, "api_url", opts.String("lapi.url"))
	appendScalarPair(root, "api_key", opts.String("lapi.key"))
	appendScalarPair(root, "deny_action", opts.String("denyAction"))
	appendScalarPair(root, "deny_log", fmt.Sprintf("%t", opts.Bool("denyLog")))
	appendScalarPair(root, "blacklists_ipv4", opts.String("blacklists.ipv4"))
	appendScalarPair(root, "blacklists_ipv6", opts.String("blacklists.ipv6"))

	return marshalNode(root)
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func newScalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}

func newStringSequence(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, v := range values {
		seq.Content = append(seq.Content, newScalar(v))
	}
	return seq
}

func appendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, newScalar(key), value)
}

func appendScalarPair(mapping *yaml.Node, key, value string) {
	appendPair(mapping, key, newScalar(value))
}

func marshalNode(root *yaml.Node) (string, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", errors.NewRenderError("failed to encode YAML config", err)
	}
	if err := enc.Close(); err != nil {
		return "", errors.NewRenderError("failed to finalize YAML config", err)
	}
	return b.String(), nil
}

package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
	"github.com/provisor/provisor/internal/schema"
)

// Renderer turns validated options into target-service config text. Each
// kind maps to a pure template function; identical options produce
// byte-identical output. The renderer never shells out: syntax validity of
// the result is the target binary's concern.
type Renderer struct {
	registry *schema.Registry
}

// NewRenderer creates a renderer backed by the given schema registry.
func NewRenderer(registry *schema.Registry) *Renderer {
	return &Renderer{registry: registry}
}

// Render produces the RenderedConfig for one service from its validated
// options. The target path is relative to the deployment working directory.
func (r *Renderer) Render(spec model.ServiceSpec, opts schema.Options) (model.RenderedConfig, error) {
	var (
		content string
		path    string
		err     error
	)

	switch spec.Kind {
	case model.KindProxy:
		path = filepath.Join("haproxy", "haproxy.cfg")
		content, err = renderProxy(opts)
	case model.KindIDS:
		path = filepath.Join("crowdsec", "config.yaml")
		content, err = renderIDS(opts)
	case model.KindBouncer:
		path = filepath.Join("crowdsec", "crowdsec-firewall-bouncer.yaml")
		content, err = renderBouncer(opts)
	case model.KindQueue:
		path = filepath.Join("rabbitmq", "rabbitmq.conf")
		content, err = renderQueue(opts)
	case model.KindBackend:
		path = filepath.Join("systemd", spec.Name+".service")
		content, err = renderBackend(spec.Name, opts)
	default:
		return model.RenderedConfig{}, errors.NewInternalError(
			fmt.Sprintf("no renderer for kind %q", spec.Kind), nil)
	}

	if err != nil {
		return model.RenderedConfig{}, err
	}

	return model.RenderedConfig{
		Service: spec.Name,
		Kind:    spec.Kind,
		Path:    path,
		Content: []byte(content),
	}, nil
}

// WriteConfig writes a rendered blob under workDir, replacing any prior
// file at that path.
func (r *Renderer) WriteConfig(workDir string, cfg model.RenderedConfig) (string, error) {
	target := filepath.Join(workDir, cfg.Path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.NewIOError("failed to create config directory", err).
			WithContext("path", target)
	}
	if err := os.WriteFile(target, cfg.Content, 0o644); err != nil {
		return "", errors.NewIOError("failed to write rendered config", err).
			WithContext("path", target)
	}
	return target, nil
}

// singleLine guards single-line fields against embedded newlines, which
// would break line-oriented target formats.
func singleLine(service interface{}, path, value string) (string, error) {
	if strings.ContainsAny(value, "\n\r") {
		return "", errors.NewRenderError(
			fmt.Sprintf("option %q contains an embedded newline, not allowed in a single-line field", path), nil,
		).WithContext("option", path).WithContext("service", fmt.Sprintf("%v", service))
	}
	return value, nil
}

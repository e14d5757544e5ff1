package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/provisor/provisor/internal/errors"
	"github.com/provisor/provisor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `
apiVersion: provisor.dev/v1
kind: Deployment
metadata:
  name: research-stack
  environment: staging
services:
  - name: web
    kind: backend
    options:
      app.module: project.wsgi:application
      bind.port: 8000
      workingDir: /srv/app
    probes:
      - kind: port
        port: 8000
        timeout: 2s
        pollInterval: 500ms
  - name: lb
    kind: proxy
    dependsOn: [web]
    options:
      frontend.port: 80
      backend.servers:
        - web 127.0.0.1:8000
`

func TestParseDeployment(t *testing.T) {
	deployment, err := ParseDeployment([]byte(validDocument), "stack.yaml")
	require.NoError(t, err)

	assert.Equal(t, "provisor.dev/v1", deployment.APIVersion)
	assert.Equal(t, "research-stack", deployment.Metadata.Name)
	assert.Equal(t, "staging", deployment.Metadata.Environment)
	require.Len(t, deployment.Services, 2)

	web := deployment.Services[0]
	assert.Equal(t, model.KindBackend, web.Kind)
	assert.Equal(t, []string(nil), web.DependsOn)

	lb := deployment.Services[1]
	assert.Equal(t, model.KindProxy, lb.Kind)
	assert.Equal(t, []string{"web"}, lb.DependsOn)
}

func TestParseDeploymentProbeDurations(t *testing.T) {
	deployment, err := ParseDeployment([]byte(validDocument), "stack.yaml")
	require.NoError(t, err)

	probes := deployment.Services[0].Probes
	require.Len(t, probes, 1)
	assert.Equal(t, model.ProbeKindPort, probes[0].Kind)
	assert.Equal(t, 2*time.Second, probes[0].Timeout)
	assert.Equal(t, 500*time.Millisecond, probes[0].PollInterval)
}

func TestParseDeploymentDefaultsProbeTarget(t *testing.T) {
	deployment, err := ParseDeployment([]byte(validDocument), "stack.yaml")
	require.NoError(t, err)

	// The document leaves target out; it defaults to the owning service.
	assert.Equal(t, "web", deployment.Services[0].Probes[0].Target)
}

func TestParseDeploymentRejections(t *testing.T) {
	tests := []struct {
		name     string
		document string
	}{
		{
			name: "wrong apiVersion",
			document: `
apiVersion: provisor.dev/v2
kind: Deployment
metadata: {name: s}
services:
  - {name: web, kind: backend}
`,
		},
		{
			name: "unknown service kind",
			document: `
apiVersion: provisor.dev/v1
kind: Deployment
metadata: {name: s}
services:
  - {name: web, kind: database}
`,
		},
		{
			name: "service missing name",
			document: `
apiVersion: provisor.dev/v1
kind: Deployment
metadata: {name: s}
services:
  - {kind: backend}
`,
		},
		{
			name: "unknown top-level key",
			document: `
apiVersion: provisor.dev/v1
kind: Deployment
metadata: {name: s}
replicas: 3
services:
  - {name: web, kind: backend}
`,
		},
		{
			name: "missing metadata name",
			document: `
apiVersion: provisor.dev/v1
kind: Deployment
metadata: {}
services:
  - {name: web, kind: backend}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeployment([]byte(tt.document), "stack.yaml")
			require.Error(t, err)
			assert.True(t, errors.IsConstraintViolationError(err))
		})
	}
}

func TestParseDeploymentInvalidYAML(t *testing.T) {
	_, err := ParseDeployment([]byte("services: [unclosed"), "stack.yaml")
	require.Error(t, err)
	assert.Equal(t, 50, errors.ExitCode(err))
}

func TestParseDeploymentInvalidProbeDuration(t *testing.T) {
	document := `
apiVersion: provisor.dev/v1
kind: Deployment
metadata: {name: s}
services:
  - name: web
    kind: backend
    probes:
      - {kind: port, port: 8000, timeout: soon}
`
	_, err := ParseDeployment([]byte(document), "stack.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid probe timeout "soon"`)
}

func TestApplyEnvironmentOverrides(t *testing.T) {
	document := `
apiVersion: provisor.dev/v1
kind: Deployment
metadata: {name: s, environment: staging}
services:
  - name: web
    kind: backend
    options:
      app.module: project.wsgi:application
      bind.port: 8000
      workingDir: /srv/app
    overrides:
      staging:
        bind.port: 8001
      production:
        workers: 8
`
	t.Run("matching environment layers its values", func(t *testing.T) {
		deployment, err := ParseDeployment([]byte(document), "stack.yaml")
		require.NoError(t, err)

		ApplyEnvironmentOverrides(deployment, "staging")

		web := deployment.Services[0]
		assert.Equal(t, 8001, web.Options["bind.port"])
		assert.Equal(t, "/srv/app", web.Options["workingDir"])
		assert.NotContains(t, web.Options, "workers", "other environments' overrides must not leak")
		assert.Nil(t, web.Overrides, "overrides are consumed by resolution")
	})

	t.Run("unknown environment is a no-op", func(t *testing.T) {
		deployment, err := ParseDeployment([]byte(document), "stack.yaml")
		require.NoError(t, err)

		ApplyEnvironmentOverrides(deployment, "qa")

		assert.Equal(t, 8000, deployment.Services[0].Options["bind.port"])
	})
}

func TestLoadDeployment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDocument), 0o644))

	deployment, err := LoadDeployment(path)
	require.NoError(t, err)
	assert.Equal(t, "research-stack", deployment.Metadata.Name)
}

func TestLoadDeploymentMissingFile(t *testing.T) {
	_, err := LoadDeployment(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, 50, errors.ExitCode(err))
}

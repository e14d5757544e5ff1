package render

import (
	"fmt"
	"strings"

	"github.com/provisor/provisor/internal/schema"
)

// renderBackend emits a systemd unit for a gunicorn WSGI backend, with an
// optional celery worker unit appended to the same blob when enabled. The
// process manager itself stays external; this only declares the unit.
func renderBackend(name string, opts schema.Options) (string, error) {
	var b strings.Builder

	module, err := singleLine(name, "app.module", opts.String("app.module"))
	if err != nil {
		return "", err
	}
	workingDir, err := singleLine(name, "workingDir", opts.String("workingDir"))
	if err != nil {
		return "", err
	}
	user, err := singleLine(name, "user", opts.String("user"))
	if err != nil {
		return "", err
	}

	b.WriteString("[Unit]\n")
	fmt.Fprintf(&b, "Description=%s application backend\n", name)
	b.WriteString("After=network.target\n")
	b.WriteString("\n")

	b.WriteString("[Service]\n")
	fmt.Fprintf(&b, "User=%s\n", user)
	fmt.Fprintf(&b, "WorkingDirectory=%s\n", workingDir)
	for i, pair := range opts.StringList("env") {
		line, err := singleLine(name, fmt.Sprintf("env[%d]", i), pair)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Environment=%s\n", line)
	}
	fmt.Fprintf(&b, "ExecStart=gunicorn --workers %d --worker-class %s --bind %s:%d --graceful-timeout %d %s\n",
		opts.Int("workers"),
		opts.String("worker.class"),
		opts.String("bind.address"),
		opts.Int("bind.port"),
		int(opts.Duration("timeout.graceful").Seconds()),
		module,
	)
	b.WriteString("Restart=on-failure\n")
	b.WriteString("\n")

	b.WriteString("[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")

	if opts.Bool("celery.enable") {
		app, err := singleLine(name, "celery.app", opts.String("celery.app"))
		if err != nil {
			return "", err
		}

		b.WriteString("\n")
		b.WriteString("[Unit]\n")
		fmt.Fprintf(&b, "Description=%s celery worker\n", name)
		fmt.Fprintf(&b, "After=network.target %s.service\n", name)
		b.WriteString("\n")

		b.WriteString("[Service]\n")
		fmt.Fprintf(&b, "User=%s\n", user)
		fmt.Fprintf(&b, "WorkingDirectory=%s\n", workingDir)
		fmt.Fprintf(&b, "ExecStart=celery --app %s worker --queues %s\n",
			app, strings.Join(opts.StringList("celery.queues"), ","))
		b.WriteString("Restart=on-failure\n")
		b.WriteString("\n")

		b.WriteString("[Install]\n")
		b.WriteString("WantedBy=multi-user.target\n")
	}

	return b.String(), nil
}

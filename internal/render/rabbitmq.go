package render

import (
	"fmt"
	"strings"

	"github.com/provisor/provisor/internal/schema"
)

// renderQueue emits rabbitmq.conf in the sysctl-style "key = value" format.
func renderQueue(opts schema.Options) (string, error) {
	var b strings.Builder

	address, err := singleLine("queue", "listener.address", opts.String("listener.address"))
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "listeners.tcp.default = %s:%d\n", address, opts.Int("listener.port"))

	vhost, err := singleLine("queue", "vhost", opts.String("vhost"))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "default_vhost = %s\n", vhost)

	user, err := singleLine("queue", "defaultUser", opts.String("defaultUser"))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "default_user = %s\n", user)

	watermark, err := singleLine("queue", "memoryHighWatermark", opts.String("memoryHighWatermark"))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "vm_memory_high_watermark.relative = %s\n", watermark)

	diskLimit, err := singleLine("queue", "disk.freeLimit", opts.String("disk.freeLimit"))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "disk_free_limit.absolute = %s\n", diskLimit)

	if opts.Bool("management.enable") {
		fmt.Fprintf(&b, "management.tcp.port = %d\n", opts.Int("management.port"))
	}

	return b.String(), nil
}

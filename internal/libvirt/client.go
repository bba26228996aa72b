package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

// DefaultSocket is the socket of the qemu:///system connection.
const DefaultSocket = "/var/run/libvirt/libvirt-sock"

const defaultTimeout = 5 * time.Second

// Client is a connection to the libvirt daemon. Close it when done.
type Client struct {
	libvirt *libvirt.Libvirt
}

// Connect dials the daemon on socketPath, DefaultSocket when empty. A zero
// timeout means five seconds.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	l := libvirt.NewWithDialer(dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	))
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}
	return &Client{libvirt: l}, nil
}

// ConnectWithContext is Connect giving up when ctx is done. A connection
// completing after that is closed in the background.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type dialed struct {
		client *Client
		err    error
	}
	ch := make(chan dialed, 1)
	go func() {
		c, err := Connect(socketPath, timeout)
		ch <- dialed{c, err}
	}()

	select {
	case d := <-ch:
		return d.client, d.err
	case <-ctx.Done():
		go func() {
			if d := <-ch; d.client != nil {
				_ = d.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	}
}

// Close disconnects. Closing twice is a no-op.
func (c *Client) Close() error {
	l := c.libvirt
	if l == nil {
		return nil
	}
	c.libvirt = nil

	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}
	return nil
}

// Libvirt returns the raw go-libvirt connection.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping checks the connection with a cheap round trip.
func (c *Client) Ping() error {
	_, err := c.libVersion()
	if err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}
	return nil
}

// Version returns the daemon version as "major.minor.micro".
func (c *Client) Version() (string, error) {
	v, err := c.libVersion()
	if err != nil {
		return "", fmt.Errorf("failed to get libvirt version: %w", err)
	}
	return FormatVersion(v), nil
}

func (c *Client) libVersion() (uint64, error) {
	if c.libvirt == nil {
		return 0, fmt.Errorf("client not connected")
	}
	return c.libvirt.ConnectGetLibVersion()
}

// FormatVersion renders a libvirt version number (major*1000000 +
// minor*1000 + micro).
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1000000, (v/1000)%1000, v%1000)
}

package libvirt

import (
	"context"
	"testing"
	"time"
)

// connectOrSkip connects to the local daemon. Tests using it are skipped in
// short mode and on hosts without libvirt.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("needs a libvirt daemon")
	}

	c, err := Connect(DefaultSocket, 0)
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return c
}

func TestClient_Live(t *testing.T) {
	c := connectOrSkip(t)

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if c.Libvirt() == nil {
		t.Fatal("Libvirt() = nil on a connected client")
	}
	v, err := c.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v == "0.0.0" {
		t.Errorf("Version() = %s", v)
	}
	pools, _, err := c.Libvirt().ConnectListAllStoragePools(1, 0)
	if err != nil {
		t.Fatalf("ConnectListAllStoragePools() error = %v", err)
	}
	t.Logf("libvirt %s with %d storage pools", v, len(pools))
}

func TestConnectWithContext_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a libvirt daemon")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := ConnectWithContext(ctx, "", 0)
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestConnect_Errors(t *testing.T) {
	t.Run("missing socket", func(t *testing.T) {
		if _, err := Connect("/nonexistent/libvirt-sock", 100*time.Millisecond); err == nil {
			t.Fatal("Connect() error = nil for a missing socket")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := ConnectWithContext(ctx, "", 0); err == nil {
			t.Fatal("ConnectWithContext() error = nil for a canceled context")
		}
	})
}

func TestClient_Disconnected(t *testing.T) {
	c := &Client{}

	if err := c.Ping(); err == nil {
		t.Error("Ping() error = nil on a disconnected client")
	}
	if _, err := c.Version(); err == nil {
		t.Error("Version() error = nil on a disconnected client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v on a disconnected client", err)
	}
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{in: 10000000, want: "10.0.0"},
		{in: 11008000, want: "11.8.0"},
		{in: 9010002, want: "9.10.2"},
	}

	for _, tt := range tests {
		if got := FormatVersion(tt.in); got != tt.want {
			t.Errorf("FormatVersion(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

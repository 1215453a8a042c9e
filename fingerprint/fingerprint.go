// Package fingerprint provides the device identity used to bind a license
// to one physical machine. The guard only needs a stable opaque string; how
// it is computed is replaceable by embedders.
package fingerprint

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/LerianStudio/lib-commons/commons"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
)

// Provider returns a stable opaque string uniquely identifying the current
// physical machine.
type Provider interface {
	Generate() (string, error)
}

// Static returns a Provider that always yields the given identifier.
// Useful for tests and for embedders that compute their own binding.
func Static(id string) Provider {
	return staticProvider(id)
}

type staticProvider string

func (p staticProvider) Generate() (string, error) {
	return string(p), nil
}

// HardwareProvider derives the fingerprint from host facts: the OS host ID,
// platform identifiers and the primary MAC address. The computed value is
// cached for the process lifetime since hardware facts do not change while
// the process runs.
type HardwareProvider struct {
	installIDPath string

	mu     sync.Mutex
	cached string
}

// NewHardwareProvider creates the default provider. installIDPath is where a
// generated install ID is persisted when no hardware fact is readable; pass
// an empty string to place it next to the user config dir default.
func NewHardwareProvider(installIDPath string) *HardwareProvider {
	return &HardwareProvider{installIDPath: installIDPath}
}

// Generate implements Provider.
func (p *HardwareProvider) Generate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	factors := make([]string, 0, 5)

	if info, err := host.Info(); err == nil {
		if info.HostID != "" {
			factors = append(factors, info.HostID)
		}

		factors = append(factors, info.Platform, info.KernelArch)
	}

	if mac, err := primaryMAC(); err == nil {
		factors = append(factors, mac)
	}

	if len(factors) == 0 {
		// No hardware fact readable; fall back to a persisted install ID so
		// the fingerprint stays stable across restarts.
		id, err := p.loadOrCreateInstallID()
		if err != nil {
			return "", fmt.Errorf("failed to establish device identity: %w", err)
		}

		factors = append(factors, id)
	}

	factors = append(factors, runtime.GOOS)

	p.cached = commons.HashSHA256(strings.Join(factors, "|"))

	return p.cached, nil
}

// primaryMAC returns the MAC address of the first up, non-loopback interface.
func primaryMAC() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	return "", fmt.Errorf("no usable MAC address found")
}

func (p *HardwareProvider) loadOrCreateInstallID() (string, error) {
	path := p.installIDPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}

		path = filepath.Join(dir, "narravox", "install-id")
	}

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", err
	}

	return id, nil
}

package metrics

import (
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SystemInfo describes the host the service runs on
type SystemInfo struct {
	Hostname         string
	OS               string
	Arch             string
	CPULogical       int
	GoVersion        string
	InContainer      bool
	ContainerRuntime string
}

func registerHostInfo(f promauto.Factory) {
	info := captureSystemInfo()

	g := f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "movesync_host_info",
		Help: "Host the service runs on, always 1",
	}, []string{"hostname", "os", "arch", "go_version", "container"})

	g.WithLabelValues(info.Hostname, info.OS, info.Arch, info.GoVersion, info.ContainerRuntime).Set(1)
}

// captureSystemInfo gathers host information
func captureSystemInfo() *SystemInfo {
	info := &SystemInfo{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPULogical: runtime.NumCPU(),
		GoVersion:  runtime.Version(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}

	info.InContainer, info.ContainerRuntime = detectContainer()

	return info
}

// detectContainer checks if running in a container
func detectContainer() (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "docker"
	}

	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true, "kubernetes"
	}

	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		switch {
		case strings.Contains(content, "docker"):
			return true, "docker"
		case strings.Contains(content, "kubepods"):
			return true, "kubernetes"
		case strings.Contains(content, "containerd"):
			return true, "containerd"
		}
	}

	return false, "none"
}

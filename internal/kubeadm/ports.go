package kubeadm

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Well-known control plane ports.
const (
	APIServerPort  = 6443
	EtcdClientPort = 2379
	EtcdPeerPort   = 2380
	KubeletPort    = 10250
)

// PortRange is an inclusive TCP port range.
type PortRange struct {
	From        int
	To          int
	Description string
}

// String renders the range as "6443" or "10250-10255".
func (r PortRange) String() string {
	if r.From == r.To {
		return strconv.Itoa(r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// Contains reports whether port falls inside the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.From && port <= r.To
}

// ControlPlanePorts must be reachable on the control plane from workers.
var ControlPlanePorts = []PortRange{
	{From: APIServerPort, To: APIServerPort, Description: "Kubernetes API server"},
	{From: EtcdClientPort, To: EtcdClientPort, Description: "etcd client API"},
	{From: EtcdPeerPort, To: EtcdPeerPort, Description: "etcd peer API"},
	{From: KubeletPort, To: 10255, Description: "kubelet and control plane components"},
}

// WorkerPorts must be reachable on workers from the control plane.
var WorkerPorts = []PortRange{
	{From: KubeletPort, To: 10255, Description: "kubelet API"},
}

// MissingPorts returns the ranges in required that open does not fully cover.
func MissingPorts(required, open []PortRange) []PortRange {
	var missing []PortRange
	for _, r := range required {
		for p := r.From; p <= r.To; p++ {
			if !covered(p, open) {
				missing = append(missing, r)
				break
			}
		}
	}
	return missing
}

func covered(port int, ranges []PortRange) bool {
	for _, r := range ranges {
		if r.Contains(port) {
			return true
		}
	}
	return false
}

// ParsePortRange parses "6443" or "10250-10255".
func ParsePortRange(s string) (PortRange, error) {
	fromStr, toStr, isRange := strings.Cut(strings.TrimSpace(s), "-")
	from, err := strconv.Atoi(fromStr)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q: %w", s, err)
	}
	to := from
	if isRange {
		if to, err = strconv.Atoi(toStr); err != nil {
			return PortRange{}, fmt.Errorf("invalid port %q: %w", s, err)
		}
	}
	if from < 1 || to > 65535 || from > to {
		return PortRange{}, fmt.Errorf("invalid port range %q", s)
	}
	return PortRange{From: from, To: to}, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

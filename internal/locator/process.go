package locator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cascadebridge/internal/logging"

	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// processInfo is the subset of a process the locator looks at.
type processInfo struct {
	PID  int32
	Name string
	Args []string
}

// processSource abstracts the OS so discovery can be tested without real processes.
type processSource interface {
	Processes(ctx context.Context) ([]processInfo, error)
	ListenPorts(ctx context.Context, pid int32) ([]int, error)
}

// ProcessLocator finds the language server by inspecting running processes:
// the token is read from its command line and the port from its listening sockets.
type ProcessLocator struct {
	NameContains string // matched against the executable name
	TokenFlag    string // e.g. --csrf_token
	Host         string

	source processSource
}

// NewProcessLocator returns a locator backed by gopsutil.
func NewProcessLocator(nameContains, tokenFlag, host string) *ProcessLocator {
	if host == "" {
		host = "127.0.0.1"
	}
	return &ProcessLocator{
		NameContains: nameContains,
		TokenFlag:    tokenFlag,
		Host:         host,
		source:       gopsutilSource{},
	}
}

func (l *ProcessLocator) Locate(ctx context.Context) (Endpoint, error) {
	procs, err := l.source.Processes(ctx)
	if err != nil {
		return Endpoint{}, &DiscoveryError{Stage: "process", Err: err}
	}

	var candidates []processInfo
	for _, p := range procs {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(l.NameContains)) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Endpoint{}, &DiscoveryError{
			Stage: "process",
			Err:   fmt.Errorf("no running process matching %q", l.NameContains),
		}
	}

	var lastErr error
	for _, p := range candidates {
		token := flagValue(p.Args, l.TokenFlag)
		if token == "" {
			lastErr = &DiscoveryError{Stage: "token", Err: fmt.Errorf("pid %d has no %s argument", p.PID, l.TokenFlag)}
			continue
		}
		ports, err := l.source.ListenPorts(ctx, p.PID)
		if err != nil {
			lastErr = &DiscoveryError{Stage: "port", Err: fmt.Errorf("pid %d: %w", p.PID, err)}
			continue
		}
		if len(ports) == 0 {
			lastErr = &DiscoveryError{Stage: "port", Err: fmt.Errorf("pid %d is not listening on loopback", p.PID)}
			continue
		}
		logging.Boot("discovered backend pid=%d ports=%v", p.PID, ports)
		return Endpoint{Host: l.Host, Port: ports[0], Token: token}, nil
	}
	return Endpoint{}, lastErr
}

// flagValue supports both "--flag value" and "--flag=value".
func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, flag+"="); ok {
			return v
		}
	}
	return ""
}

type gopsutilSource struct{}

func (gopsutilSource) Processes(ctx context.Context) ([]processInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]processInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // exited or not permitted
		}
		args, _ := p.CmdlineSliceWithContext(ctx)
		out = append(out, processInfo{PID: p.Pid, Name: name, Args: args})
	}
	return out, nil
}

func (gopsutilSource) ListenPorts(ctx context.Context, pid int32) ([]int, error) {
	conns, err := net.ConnectionsPidWithContext(ctx, "tcp", pid)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var ports []int
	for _, c := range conns {
		if c.Status != "LISTEN" || !isLoopbackOrAny(c.Laddr.IP) {
			continue
		}
		port := int(c.Laddr.Port)
		if !seen[port] {
			seen[port] = true
			ports = append(ports, port)
		}
	}
	sort.Ints(ports)
	return ports, nil
}

func isLoopbackOrAny(ip string) bool {
	switch ip {
	case "127.0.0.1", "::1", "0.0.0.0", "::", "localhost":
		return true
	}
	return false
}

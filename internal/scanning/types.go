package scanning

import (
	"strconv"
)

const (
	// UnknownOS is reported when no OS fingerprint could be determined.
	UnknownOS = "Unknown OS"

	// UnknownService is used for open ports without a service column.
	UnknownService = "unknown"

	// PortRange is the TCP range probed on every live host.
	PortRange = "1-1024"
)

// PortEntry is one open TCP port and the service nmap associated with it.
type PortEntry struct {
	Number  int    `json:"number"`
	Service string `json:"service"`
}

// String renders the entry as "<port> (<service>)".
func (p PortEntry) String() string {
	service := p.Service
	if service == "" {
		service = UnknownService
	}
	return strconv.Itoa(p.Number) + " (" + service + ")"
}

// Record is the result for one live host.
type Record struct {
	IP    string      `json:"ip"`
	Ports []PortEntry `json:"ports"`
	OS    string      `json:"os"`
}

// NewRecord builds a record, substituting UnknownOS for an empty OS.
func NewRecord(ip string, ports []PortEntry, os string) Record {
	if os == "" {
		os = UnknownOS
	}
	return Record{
		IP:    ip,
		Ports: ports,
		OS:    os,
	}
}

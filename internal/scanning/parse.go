package scanning

import (
	"strconv"
	"strings"
)

// Markers recognized in nmap's normal text output.
const (
	hostMarker    = "Nmap scan report for"
	tcpMarker     = "/tcp"
	openMarker    = "open"
	osMarker      = "OS details"
	serviceColumn = 2
)

// ParseHosts returns the live hosts of a discovery report in the order they
// appear. The host is the last field of each "Nmap scan report for" line;
// the parentheses nmap puts around the address of a named host are removed.
func ParseHosts(out string) []string {
	var hosts []string
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, hostMarker) {
			continue
		}
		fields := strings.Fields(line)
		host := strings.Trim(fields[len(fields)-1], "()")
		if host == "" {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts
}

// ParsePorts returns the open TCP ports of a port scan report. Lines whose
// first field is not "<number>/tcp" are skipped.
func ParsePorts(out string) []PortEntry {
	var ports []PortEntry
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, tcpMarker) || !strings.Contains(line, openMarker) {
			continue
		}
		fields := strings.Fields(line)
		number, _, _ := strings.Cut(fields[0], "/")
		port, err := strconv.Atoi(number)
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		service := UnknownService
		if len(fields) > serviceColumn {
			service = fields[serviceColumn]
		}
		ports = append(ports, PortEntry{Number: port, Service: service})
	}
	return ports
}

// ParseOS returns the text after the last ':' of the first "OS details"
// line, or UnknownOS.
func ParseOS(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, osMarker) {
			continue
		}
		idx := strings.LastIndex(line, ":")
		return strings.TrimSpace(line[idx+1:])
	}
	return UnknownOS
}

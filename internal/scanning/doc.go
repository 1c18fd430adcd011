// Package scanning drives nmap for anscanner.
//
// Three scan modes are supported: host discovery (-sn) for one address,
// a TCP port scan of 1-1024 (-p 1-1024) and OS fingerprinting (-O) for one
// live host. Every mode is reachable through the Backend interface, so the
// sweep pipeline never sees how nmap is invoked or how its output is read.
//
// # Backends
//
// TextBackend runs nmap through an Invoker and reads the plain text report
// with the line-oriented parsers in parse.go:
//   - ParseHosts: "Nmap scan report for <ip>" lines
//   - ParsePorts: "<port>/tcp open <service>" lines
//   - ParseOS: the first "OS details: ..." line
//
// XMLBackend uses github.com/Ullaakut/nmap/v3, which runs nmap with -oX and
// decodes the structured report instead.
//
// # Failure handling
//
// The Invoker classifies failures into coded errors from internal/errors:
//   - non-zero exit: CodeScanFailed
//   - binary missing: CodeToolNotFound
//   - permission denied: CodePermission
//   - per-invocation deadline: CodeTimeout
//   - caller cancellation: CodeCanceled
//
// Backends return these errors unchanged. Degrading them to empty results is
// left to the caller.
//
// # Usage
//
//	inv := scanning.NewInvoker(scanning.ExecRunner{}, "nmap", 5*time.Minute, logger, m)
//	backend := scanning.NewTextBackend(inv)
//
//	hosts, err := backend.Discover(ctx, "192.168.1.10")
//	if err != nil {
//		// report and continue with no hosts
//	}
package scanning

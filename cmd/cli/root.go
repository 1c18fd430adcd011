// Package cli provides the command-line interface for anscanner.
// The root command resolves a target, sweeps it with nmap and prints the
// live hosts with their open ports and operating system.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names. Each is also readable from the ANSCANNER_<NAME> environment
// variable, with dashes replaced by underscores.
const (
	flagNmapPath    = "nmap-path"
	flagBackend     = "backend"
	flagTimeout     = "timeout"
	flagWorkers     = "workers"
	flagRateLimit   = "rate-limit"
	flagStrict      = "strict"
	flagDNSServer   = "dns-server"
	flagLogFile     = "log-file"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
	flagMetricsFile = "metrics-file"
	flagSaveConfig  = "save-config"
	flagVerbose     = "verbose"

	envPrefix = "ANSCANNER"
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "anscanner [target]",
	Short: "Sweep a host or /24 with nmap",
	Long: `anscanner resolves a domain or IP address, discovers live hosts with nmap
and reports the open TCP ports (1-1024) and operating system of each one.

A trailing ":port" on the target is ignored. When the target does not resolve
it is treated as the first three octets of a /24, and prefix.1 through
prefix.254 are swept instead. Without a target argument the address is read
from standard input.`,
	Version:       getVersion(),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScan,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.BoolVarP(&verbose, flagVerbose, "v", false, "verbose output (debug logging)")

	flags.String(flagNmapPath, "nmap", "path or name of the nmap binary")
	flags.String(flagBackend, "text", "nmap output backend: text or xml")
	flags.Duration(flagTimeout, 5*time.Minute, "timeout for a single nmap invocation")
	flags.Int(flagWorkers, 1, "hosts scanned for ports and OS at the same time")
	flags.Float64(flagRateLimit, 0, "discovery launches per second (0 = unlimited)")
	flags.Bool(flagStrict, false, "reject unresolvable targets that are not a three-octet prefix")
	flags.String(flagDNSServer, "", "DNS server (host:port) used instead of the system resolver")
	flags.String(flagLogFile, "scan.log", "log file, or stdout, stderr, discard")
	flags.String(flagLogLevel, "info", "log level: debug, info, warn, error")
	flags.String(flagLogFormat, "text", "log format: text or json")
	flags.String(flagMetricsFile, "", "write Prometheus metrics to this textfile after the run")
	flags.String(flagSaveConfig, "", "write the effective configuration to this file and exit")

	bindFlags(viper.GetViper(), flags,
		flagVerbose, flagNmapPath, flagBackend, flagTimeout, flagWorkers, flagRateLimit,
		flagStrict, flagDNSServer, flagLogFile, flagLogLevel, flagLogFormat, flagMetricsFile)
}

// bindFlags binds each named flag to the viper key of the same name.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		flag := flags.Lookup(name)
		if flag == nil {
			fmt.Fprintf(os.Stderr, "Warning: unknown flag %s\n", name)
			continue
		}
		if err := v.BindPFlag(name, flag); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
		}
	}
}

// initConfig wires environment variables into viper. The YAML file itself is
// read by internal/config so that it is validated like any other source.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(newEnvReplacer())
	viper.AutomaticEnv()

	if cfgFile == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			cfgFile = "config.yaml"
		}
	}
	if verbose && cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", cfgFile)
	}
}

func newEnvReplacer() *strings.Replacer {
	return strings.NewReplacer("-", "_")
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

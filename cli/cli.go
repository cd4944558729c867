package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"tcpsweep/config"
	"tcpsweep/logging"
	"tcpsweep/scanner"
)

// IO bundles the streams the CLI talks to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Report is the -json output document.
type Report struct {
	Host       string          `json:"host"`
	IP         string          `json:"ip"`
	OpenPorts  []uint16        `json:"open_ports"`
	Summary    scanner.Summary `json:"summary"`
	DurationMs int64           `json:"duration_ms"`
}

// Run is the main entry point for the CLI application. It parses flags and
// arguments, prompts for missing input, runs the scan and prints the result.
// The return value is the process exit code.
func Run(ctx context.Context, cfg config.Config, args []string, stdio IO) int {
	fs := flag.NewFlagSet("tcpsweep", flag.ContinueOnError)
	fs.SetOutput(stdio.Err)
	jsonOutput := fs.Bool("json", false, "Output results in JSON format")
	workers := fs.Int("workers", cfg.ScanWorkers, "Number of concurrent connection attempts")
	timeout := fs.Duration("timeout", cfg.ScanTimeout, "Per-connection timeout")
	logLevel := fs.String("log-level", cfg.LogLevel.String(), "Log level: debug, info, warn, error")
	source := fs.String("source", "", "Source IP address for outgoing connections")
	fs.Usage = func() { printUsage(stdio.Err, fs) }

	if err := fs.Parse(args); err != nil {
		return 2
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(stdio.Err, "Error: %v\n", err)
		return 2
	}
	logger := logging.New(logging.Options{Level: level, Format: "text", Output: stdio.Err})

	prober := scanner.TCPProber{}
	if *source != "" {
		ip := net.ParseIP(*source)
		if ip == nil {
			fmt.Fprintf(stdio.Err, "Error: invalid source address %q\n", *source)
			return 2
		}
		prober.LocalAddr = &net.TCPAddr{IP: ip}
	}

	host, ports, err := readTarget(fs.Args(), stdio)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	if err := scanner.ValidateRequest(ports, *workers, *timeout); err != nil {
		logger.Error(err.Error())
		return 1
	}

	ip, err := scanner.ResolveHost(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("scan interrupted")
			return 130
		}
		logger.Error("Invalid IP/domain. Please try again.", "host", host, "error", err)
		return 1
	}

	start := time.Now()
	logger.Info("scanning started",
		"at", start.Format("15:04:05"),
		"host", host,
		"ip", ip,
		"ports", len(ports),
		"workers", *workers,
		"timeout", timeout.String(),
	)

	tally := &scanner.Tally{}
	observer := scanner.NewLogObserver(logger, 1024)
	s := scanner.New(prober, scanner.MultiObserver{tally, observer})
	openPorts, err := s.Scan(ctx, ip, ports, *workers, *timeout)
	observer.Close()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("scan interrupted")
			return 130
		}
		logger.Error("scan failed", "error", err)
		return 1
	}
	elapsed := time.Since(start)

	summary := tally.Summary()
	logger.Info("scanning finished",
		"duration", elapsed.Round(time.Millisecond).String(),
		"open", summary.Open,
		"closed", summary.Closed,
		"timeouts", summary.Timeouts,
		"transport_errors", summary.Transport,
	)

	if *jsonOutput {
		return outputJSON(stdio.Out, Report{
			Host:       host,
			IP:         ip,
			OpenPorts:  openPorts,
			Summary:    summary,
			DurationMs: elapsed.Milliseconds(),
		}, logger)
	}
	outputPlainText(stdio.Out, openPorts)
	return 0
}

// readTarget takes host and port spec from the arguments, prompting on
// stdin for whatever is missing.
func readTarget(args []string, stdio IO) (string, []uint16, error) {
	if len(args) > 2 {
		return "", nil, fmt.Errorf("unexpected arguments: %s", strings.Join(args[2:], " "))
	}

	in := bufio.NewScanner(stdio.In)
	var host string
	if len(args) > 0 {
		host = args[0]
	} else {
		host = prompt(in, stdio.Out, "Enter Your IP/domain: ")
	}

	if len(args) == 2 {
		ports, err := scanner.ParsePorts(args[1])
		if err != nil {
			return "", nil, fmt.Errorf("invalid port spec: %w", err)
		}
		return host, ports, nil
	}

	start, err := strconv.Atoi(prompt(in, stdio.Out, "Enter the starting port number: "))
	if err != nil {
		return "", nil, errors.New("starting port is not a number")
	}
	end, err := strconv.Atoi(prompt(in, stdio.Out, "Enter the ending port number: "))
	if err != nil {
		return "", nil, errors.New("ending port is not a number")
	}
	ports, err := scanner.ParseRange(start, end)
	if err != nil {
		return "", nil, fmt.Errorf("invalid port range: %w", err)
	}
	return host, ports, nil
}

func prompt(in *bufio.Scanner, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

// printUsage displays the help message.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: tcpsweep [flags] [host [ports]]")
	fmt.Fprintln(w, "       tcpsweep serve")
	fmt.Fprintln(w, "Example: tcpsweep 127.0.0.1 22-80")
	fmt.Fprintln(w, "Example: tcpsweep -workers 256 -timeout 2s --json scanme.nmap.org 22,80,443")
	fmt.Fprintln(w, "Example: tcpsweep -source 10.0.0.5 10.0.0.1 1-1024")
	fmt.Fprintln(w, "Host and ports are prompted for when omitted.")
	fs.PrintDefaults()
}

// outputJSON prints the report as indented JSON.
func outputJSON(w io.Writer, report Report, logger *slog.Logger) int {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Error("encoding to JSON", "error", err)
		return 1
	}
	fmt.Fprintln(w, string(jsonData))
	return 0
}

// outputPlainText prints the open ports on one line.
func outputPlainText(w io.Writer, openPorts []uint16) {
	if len(openPorts) == 0 {
		fmt.Fprintln(w, "No open ports found.")
		return
	}
	parts := make([]string, len(openPorts))
	for i, p := range openPorts {
		parts[i] = strconv.Itoa(int(p))
	}
	fmt.Fprintf(w, "Open ports: %s\n", strings.Join(parts, ", "))
}

/*
The sstpc command is an SSTP VPN client daemon.

Package sstp is used for the SSTP/PPP control protocol and packet pumps.
Package internal/tundev provides the Linux TUN device and netlink route
programming. sstpc is driven by a single TOML configuration file which
describes the tunnel to bring up; see package config for the file format.

sstpc runs one tunnel attempt at a time via sstp.Run, and implements a
host-level reconnection loop on top of it: the Engine itself never decides
to reconnect, so that policy lives here.
*/
package main

import (
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-sstp/config"
	"github.com/katalix/go-sstp/internal/tundev"
	"github.com/katalix/go-sstp/sstp"
	"golang.org/x/sys/unix"
)

// loggingReporter satisfies sstp.Reporter by logging every notification.
type loggingReporter struct {
	logger log.Logger
}

func (r *loggingReporter) Notify(channel sstp.ReportChannel, body, id string) {
	level.Info(r.logger).Log("msg", "notify", "channel", channel, "body", body, "id", id)
}

// noopTrustStore satisfies sstp.TrustStore when no custom CA directory has
// been configured; TLSConfig.DoSpecifyTrust being false means the
// transport never calls into it.
type noopTrustStore struct{}

func (noopTrustStore) ListCACerts() ([][]byte, error) { return nil, nil }

func fileTrustStore(dir string) (sstp.TrustStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var certs [][]byte
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, err
		}
		certs = append(certs, b)
	}
	return dirTrustStore(certs), nil
}

type dirTrustStore [][]byte

func (d dirTrustStore) ListCACerts() ([][]byte, error) { return d, nil }

func run(cfg *sstp.Config, logger log.Logger, sigChan <-chan os.Signal) int {
	trust, err := trustStoreFor(cfg)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load trust store", "error", err)
		return 1
	}
	reporter := &loggingReporter{logger: logger}

	attempt := 0
	for {
		attempt++

		tun, err := tundev.New("", logger)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open tun device", "error", err)
			return 1
		}

		outcomeChan := make(chan sstp.Outcome, 1)
		go func() { outcomeChan <- sstp.Run(cfg, tun, trust, reporter, logger) }()

		var outcome sstp.Outcome
		select {
		case outcome = <-outcomeChan:
		case sig := <-sigChan:
			level.Info(logger).Log("msg", "signal received, shutting down", "signal", sig)
			tun.Close()
			return 0
		}
		tun.Close()

		level.Info(logger).Log("msg", "tunnel attempt ended", "attempt", attempt, "where", outcome.Where, "result", outcome.Result, "error", outcome.Err)

		if !cfg.Reconnect.Enabled || attempt > cfg.Reconnect.Count {
			if outcome.Result != sstp.Proceeded {
				return 1
			}
			return 0
		}

		select {
		case <-time.After(cfg.Reconnect.Interval):
		case sig := <-sigChan:
			level.Info(logger).Log("msg", "signal received, shutting down", "signal", sig)
			return 0
		}
	}
}

func trustStoreFor(cfg *sstp.Config) (sstp.TrustStore, error) {
	if cfg.TLS.DoSpecifyTrust && cfg.TLS.CertDir != "" {
		return fileTrustStore(cfg.TLS.CertDir)
	}
	return noopTrustStore{}, nil
}

func main() {
	cfgPathPtr := flag.String("config", "/etc/sstpc/sstpc.toml", "specify configuration file path")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPathPtr)
	if err != nil {
		stdlog.Fatalf("failed to load configuration: %v", err)
	}

	logger := log.NewLogfmtLogger(os.Stderr)
	var filtered log.Logger
	if *verbosePtr {
		filtered = level.NewFilter(logger, level.AllowDebug())
	} else {
		filtered = level.NewFilter(logger, level.AllowInfo())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM)

	os.Exit(run(cfg, filtered, sigChan))
}

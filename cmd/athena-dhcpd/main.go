// resolvdhcpd — RFC 2131/2132 DHCPv4 server with externally-resolved,
// per-request lease lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	nethttp "net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/resolvdhcpd/resolvdhcpd/internal/backend/boltbackend"
	"github.com/resolvdhcpd/resolvdhcpd/internal/cache"
	"github.com/resolvdhcpd/resolvdhcpd/internal/config"
	"github.com/resolvdhcpd/resolvdhcpd/internal/dhcp"
	"github.com/resolvdhcpd/resolvdhcpd/internal/engine"
	"github.com/resolvdhcpd/resolvdhcpd/internal/hooks"
	"github.com/resolvdhcpd/resolvdhcpd/internal/logging"
	"github.com/resolvdhcpd/resolvdhcpd/internal/metrics"
	"github.com/resolvdhcpd/resolvdhcpd/internal/netlink"
	"github.com/resolvdhcpd/resolvdhcpd/internal/resolver"
	"github.com/resolvdhcpd/resolvdhcpd/internal/suspend"
)

// version is set via -ldflags in release builds; dev builds report "dev".
var version = "dev"

func main() {
	configPath := flag.String("config", "/etc/athena-dhcpd/config.toml", "path to configuration file")
	debugPort := flag.String("debug-port", "", "enable pprof debug server on this port (e.g. 6060)")
	flag.Parse()

	// Start pprof debug server if requested
	if *debugPort != "" {
		runtime.SetMutexProfileFraction(5)
		runtime.SetBlockProfileRate(1)
		go func() {
			addr := "0.0.0.0:" + *debugPort
			fmt.Fprintf(os.Stderr, "pprof debug server on http://%s/debug/pprof/\n", addr)
			if err := nethttp.ListenAndServe(addr, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server failed: %v\n", err)
			}
		}()
	}

	// SIGUSR1 dumps all goroutine stacks to /tmp/resolvdhcpd-goroutines.txt.
	// Works even under 100% CPU since signals are kernel-delivered.
	go func() {
		sigUsr1 := make(chan os.Signal, 1)
		signal.Notify(sigUsr1, syscall.SIGUSR1)
		for range sigUsr1 {
			buf := make([]byte, 64*1024*1024) // 64MB
			n := runtime.Stack(buf, true)      // true = all goroutines
			path := "/tmp/resolvdhcpd-goroutines.txt"
			if err := os.WriteFile(path, buf[:n], 0644); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write goroutine dump: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "goroutine dump written to %s (%d bytes)\n", path, n)
			}
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Server.LogLevel, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("resolvdhcpd starting",
		"config", *configPath,
		"server_ip", cfg.Server.ServerIP,
		"authoritative", cfg.Server.Authoritative)

	metrics.ServerInfo.WithLabelValues(version).Set(1)
	metrics.ServerStartTime.SetToCurrentTime()

	if cfg.Server.PIDFile != "" {
		if err := writePIDFile(cfg.Server.PIDFile); err != nil {
			logger.Warn("failed to write PID file", "path", cfg.Server.PIDFile, "error", err)
		} else {
			defer removePIDFile(cfg.Server.PIDFile)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := boltbackend.Open(cfg.Server.BackendPath)
	if err != nil {
		logger.Error("failed to open backend database", "path", cfg.Server.BackendPath, "error", err)
		os.Exit(1)
	}
	defer be.Close()
	logger.Info("backend database opened", "path", cfg.Server.BackendPath)

	var c *cache.Cache
	if cfg.Cache.Enabled {
		c, err = cache.New(cache.Config{
			OnDisk:           cfg.Cache.OnDisk,
			PersistentPath:   cfg.Cache.PersistentPath,
			NegativeCache:    cfg.Cache.NegativeCache,
			NegativeCacheTTL: cfg.NegativeCacheTTLDuration(),
		})
		if err != nil {
			logger.Error("failed to open cache", "error", err)
			os.Exit(1)
		}
		defer c.Close()
	}

	hooksImpl := buildHooks(cfg)

	res := resolver.New(be, c, engine.NewResolverHooks(hooksImpl))

	var susp *suspend.Suspender
	if cfg.Server.EnableSuspend {
		susp = suspend.New(suspend.Config{
			SuspendThreshold:          cfg.Server.SuspendThreshold,
			MisbehavingTimeout:        cfg.MisbehavingClientTimeoutDuration(),
			UnauthorizedClientTimeout: cfg.UnauthorizedClientTimeoutDuration(),
		})
	}

	serverIP := cfg.ServerIP()
	eng := engine.New(engine.Config{
		ServerIP:      serverIP,
		Authoritative: cfg.Server.Authoritative,
		NAKRenewals:   cfg.Server.NAKRenewals,
		EnableSuspend: cfg.Server.EnableSuspend,
	}, res, susp, hooksImpl)

	var qtags []netlink.QTag
	for _, q := range cfg.Server.ResponseInterfaceQTags {
		qtags = append(qtags, netlink.QTag{PCP: q.PCP, DEI: q.DEI, VID: q.VID})
	}

	nl, err := netlink.Open(netlink.Config{
		ServerIP:          serverIP,
		ServerPort:        cfg.Server.ServerPort,
		ClientPort:        cfg.Server.ClientPort,
		ProxyPort:         cfg.Server.ProxyPort,
		ResponseInterface: cfg.Server.ResponseInterface,
		ResponseQTags:     qtags,
	})
	if err != nil {
		logger.Error("failed to open network transport", "error", err)
		os.Exit(1)
	}

	nl.Serve(ctx, func(ctx context.Context, r netlink.Received) (*dhcp.Packet, bool) {
		pkt, err := dhcp.DecodePacket(r.Data)
		if err != nil {
			metrics.PacketErrors.WithLabelValues("decode").Inc()
			logger.Debug("discarding unparseable packet", "source", r.SourceIP, "error", err)
			return nil, false
		}
		return eng.Handle(pkt, r.ReceivedOn, r.SourceIP)
	})
	logger.Info("listening",
		"server_port", cfg.Server.ServerPort,
		"client_port", cfg.Server.ClientPort,
		"proxy_port", cfg.Server.ProxyPort)

	if susp != nil {
		go runSuspenderTicker(ctx, susp)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, reinitialising cache and backend")
			if err := res.Reinitialise(); err != nil {
				logger.Error("reinitialise failed", "error", err)
				continue
			}
			logger.Info("reinitialise complete")

		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("received shutdown signal", "signal", sig.String())
			cancel() // stop accepting new packets; in-flight ones still finish

			closed := make(chan struct{})
			go func() {
				nl.Close() // waits for every in-flight receive goroutine to return
				close(closed)
			}()

			select {
			case <-closed:
				logger.Info("all in-flight packets drained")
			case <-time.After(shutdownGraceDeadline):
				logger.Warn("shutdown grace deadline exceeded, exiting with requests still in flight")
			}

			logger.Info("resolvdhcpd stopped")
			return
		}
	}
}

// shutdownGraceDeadline bounds how long a SIGINT/SIGTERM waits for
// in-flight packets to finish (spec §5 "graceful-shutdown grace deadline").
const shutdownGraceDeadline = 10 * time.Second

// runSuspenderTicker drives the Suspender's score decay at roughly 1Hz
// (spec §4.6 "a background tick").
func runSuspenderTicker(ctx context.Context, susp *suspend.Suspender) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			susp.Tick()
		}
	}
}

// buildHooks layers the configured hook implementations over DefaultHooks,
// script hooks outermost, first-configured-wins: scripts are checked first, then
// webhooks, then RADIUS, falling through to DefaultHooks' total allow
// (spec §4.8/§6.2).
func buildHooks(cfg *config.Config) hooks.Hooks {
	var h hooks.Hooks = hooks.DefaultHooks{}

	if cfg.Hooks.RADIUS.Enabled {
		timeout, err := time.ParseDuration(cfg.Hooks.RADIUS.Timeout)
		if err != nil {
			timeout = config.DefaultRADIUSTimeout
		}
		h = hooks.NewRADIUSHooks(h, hooks.RADIUSConfig{
			Server:  cfg.Hooks.RADIUS.Server,
			Secret:  cfg.Hooks.RADIUS.Secret,
			Timeout: timeout,
		})
	}

	if wf, wu, wl := pickWebhook(cfg.Hooks.Webhooks, "filter"), pickWebhook(cfg.Hooks.Webhooks, "unknown_mac"), pickWebhook(cfg.Hooks.Webhooks, "load"); wf != nil || wu != nil || wl != nil {
		h = hooks.NewWebhookHooks(h, wf, wu, wl)
	}

	if sf, su, sl := pickScript(cfg.Hooks.Scripts, "filter"), pickScript(cfg.Hooks.Scripts, "unknown_mac"), pickScript(cfg.Hooks.Scripts, "load"); sf != nil || su != nil || sl != nil {
		h = hooks.NewScriptHooks(h, sf, su, sl)
	}

	return h
}

func pickScript(scripts []config.ScriptHook, event string) *hooks.ScriptConfig {
	for _, s := range scripts {
		if !containsEvent(s.Events, event) {
			continue
		}
		timeout := config.DefaultScriptTimeout
		if s.Timeout != "" {
			if d, err := time.ParseDuration(s.Timeout); err == nil {
				timeout = d
			}
		}
		return &hooks.ScriptConfig{Name: s.Name, Command: s.Command, Timeout: timeout}
	}
	return nil
}

func pickWebhook(webhooks []config.WebhookHook, event string) *hooks.WebhookConfig {
	for _, w := range webhooks {
		if !containsEvent(w.Events, event) {
			continue
		}
		timeout := 10 * time.Second
		if w.Timeout != "" {
			if d, err := time.ParseDuration(w.Timeout); err == nil {
				timeout = d
			}
		}
		backoff := config.DefaultWebhookRetryBackoff
		if w.RetryBackoff != "" {
			if d, err := time.ParseDuration(w.RetryBackoff); err == nil {
				backoff = d
			}
		}
		return &hooks.WebhookConfig{
			Name:         w.Name,
			URL:          w.URL,
			Method:       w.Method,
			Headers:      w.Headers,
			Timeout:      timeout,
			Retries:      w.Retries,
			RetryBackoff: backoff,
			Secret:       w.Secret,
		}
	}
	return nil
}

func containsEvent(events []string, want string) bool {
	for _, e := range events {
		if e == want {
			return true
		}
	}
	return false
}

// writePIDFile writes the current process ID to the given path.
func writePIDFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating PID directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// removePIDFile removes the PID file.
func removePIDFile(path string) {
	os.Remove(path)
}

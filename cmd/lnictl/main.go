// cmd/lnictl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tamzrod/lnictl/internal/config"
	"github.com/tamzrod/lnictl/internal/logging"
	"github.com/tamzrod/lnictl/internal/writer"
	wredis "github.com/tamzrod/lnictl/internal/writer/redis"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: lnictl <config.yaml>")
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "lnictl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	config.Normalize(cfg)
	c := cfg.Lnictl

	log, err := logging.New(logging.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Shared status targets
	// --------------------

	statusClients, closeStatus, err := writer.BuildEndpointClients(c.StatusMemory)
	if err != nil {
		return fmt.Errorf("status memory client failed: %w", err)
	}
	defer closeStatus()

	var pub *wredis.Publisher
	if c.Redis != nil {
		pub, err = wredis.New(wredis.Config{
			Address: c.Redis.Address,
			Prefix:  c.Redis.Prefix,
			Timeout: ms(c.Redis.TimeoutMs),
		})
		if err != nil {
			return err
		}
		defer pub.Close()
	}

	// --------------------
	// Build per-port pipelines
	// --------------------

	var ports []*portRuntime
	defer func() {
		for _, rt := range ports {
			if err := rt.closeBus(); err != nil {
				log.Warn("bus close failed", "port", rt.id, "err", err)
			}
		}
	}()

	for _, p := range c.Ports {
		plan, err := writer.BuildPlan(p, c.StatusMemory)
		if err != nil {
			return fmt.Errorf("writer plan failed (port=%s): %w", p.ID, err)
		}

		rt, err := buildPort(p, plan, statusClients, pub, log)
		if err != nil {
			return fmt.Errorf("port build failed (port=%s): %w", p.ID, err)
		}
		ports = append(ports, rt)
	}

	log.Info("lnictl started", "ports", len(ports))

	var wg sync.WaitGroup
	for _, rt := range ports {
		wg.Add(1)
		go func(rt *portRuntime) {
			defer wg.Done()
			rt.run(ctx, &wg)
		}(rt)
	}

	// SIGHUP revives ports whose co-processor channel has died.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-hup:
			log.Info("SIGHUP, reviving dead co-processor channels")
			for _, rt := range ports {
				rt.requestRevive()
			}
		}
	}

	log.Info("shutting down")
	wg.Wait()

	return nil
}

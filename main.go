package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	help := flag.Bool("h", false, "show usage and exit")
	flag.BoolVar(help, "help", false, "show usage and exit")
	configPath := flag.String("c", "", "path to configuration file (required)")
	testConfig := flag.Bool("t", false, "validate configuration and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "ronatun: -c <path> is required")
		os.Exit(1)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ronatun: %v\n", err)
		os.Exit(1)
	}

	if *testConfig {
		fmt.Printf("configuration file %s test OK\n", *configPath)
		fmt.Printf("  redir:  %s:%s\n", cfg.Redir.Address, cfg.Redir.Port)
		fmt.Printf("  relays: %d\n", len(cfg.Server))
		for _, s := range cfg.Server {
			fmt.Printf("    %s:%s\n", s.Address, s.Port)
		}
		os.Exit(0)
	}

	if cfg.PoolSize <= 0 {
		fmt.Fprintln(os.Stderr, "ronatun: pool initialization failed: pool_size must be positive")
		os.Exit(3)
	}

	acceptor, err := NewAcceptor(cfg)
	if err != nil {
		var relayErr *RelayResolveError
		if errors.As(err, &relayErr) {
			fmt.Fprintf(os.Stderr, "ronatun: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ronatun: %v\n", err)
		os.Exit(4)
	}

	log.Printf("[main] listening on %s, %d relay(s), pool size %d", acceptor.Addr(), len(cfg.Server), cfg.PoolSize)

	errCh := make(chan error, 1)
	go func() {
		errCh <- acceptor.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[main] received signal %s, shutting down", sig)
		acceptor.Close()
	case err := <-errCh:
		if err != nil {
			log.Printf("[main] listener error: %v", err)
		}
	}
}

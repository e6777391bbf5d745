package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/crystal-mush/gofugue/pkg/client"
	"github.com/crystal-mush/gofugue/pkg/script"
	"github.com/crystal-mush/gofugue/pkg/websrv"
	"github.com/crystal-mush/gofugue/pkg/world"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("GOFUGUE_CONF", ""), "Path to YAML config file (env: GOFUGUE_CONF)")
	worldArg := flag.String("world", envDefault("GOFUGUE_WORLD", ""), "World to connect to at startup (env: GOFUGUE_WORLD)")
	hostArg := flag.String("host", "", "Ad-hoc world host (used with -port, no config needed)")
	portArg := flag.Int("port", 0, "Ad-hoc world port")
	scrollPath := flag.String("scrollback", envDefault("GOFUGUE_SCROLLBACK", ""), "Scrollback database path, overrides config (env: GOFUGUE_SCROLLBACK)")
	storePath := flag.String("store", envDefault("GOFUGUE_STORE", ""), "Session database path, overrides config (env: GOFUGUE_STORE)")
	webPort := flag.Int("web-port", 0, "Status/mirror web server port, overrides config (env: GOFUGUE_WEB_PORT)")
	noWeb := flag.Bool("no-web", false, "Disable the status/mirror web server")
	debug := flag.Bool("debug", os.Getenv("GOFUGUE_DEBUG") == "true", "Enable debug logging (env: GOFUGUE_DEBUG)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gofugue %s\n", script.Version)
		return
	}

	client.SetDebug(*debug)
	log.Printf("gofugue %s starting", script.Version)

	// Load config if specified, otherwise use defaults.
	var cfg *client.Config
	if *confFile != "" {
		var err error
		cfg, err = client.LoadConfig(*confFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		log.Printf("Loaded config from %s", *confFile)
	} else {
		cfg = client.DefaultConfig()
	}

	// Command-line flags override config file values.
	if *scrollPath != "" {
		cfg.ScrollbackPath = *scrollPath
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *webPort == 0 {
		if envPort := os.Getenv("GOFUGUE_WEB_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*webPort = p
			}
		}
	}
	if *webPort != 0 {
		cfg.WebEnabled = true
		cfg.WebPort = *webPort
	}
	if *noWeb {
		cfg.WebEnabled = false
	}

	// An ad-hoc -host/-port pair defines a throwaway world.
	if *hostArg != "" && *portArg != 0 {
		cfg.Worlds = append(cfg.Worlds, world.Info{
			Name: *hostArg,
			Host: *hostArg,
			Port: *portArg,
		})
		if *worldArg == "" {
			*worldArg = *hostArg
		}
	}

	if err := os.MkdirAll(dirOf(cfg.StorePath), 0o755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	sess, err := client.NewSession(cfg)
	if err != nil {
		log.Fatalf("Error starting session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl-C cancels the session loop; state is still saved below.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.WebEnabled {
		web := websrv.New(sess.Bus(), sess.Worlds(), websrv.Config{
			Host: cfg.WebHost,
			Port: cfg.WebPort,
		})
		go func() {
			if err := web.Start(); err != nil {
				log.Printf("websrv: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
			defer done()
			web.Stop(shutdownCtx)
		}()
	}

	if cfg.WatchScripts && len(cfg.Scripts) > 0 {
		watcher, err := client.NewWatcher(sess)
		if err != nil {
			log.Printf("watch: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	watchResize(sess)

	// Stdin reader: one line per session input.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			sess.Input() <- scanner.Text()
		}
		cancel()
	}()

	if *worldArg != "" {
		sess.Input() <- "#connect " + *worldArg
	}

	sess.Run(ctx)

	if err := sess.Close(); err != nil {
		log.Printf("Error saving session: %v", err)
	}
	log.Printf("gofugue exiting")
}

func dirOf(path string) string {
	if path == "" {
		return "."
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == os.PathSeparator {
			return path[:i]
		}
	}
	return "."
}

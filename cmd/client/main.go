package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crystal-mush/gotinyclient/pkg/boltstore"
	"github.com/crystal-mush/gotinyclient/pkg/scrollback"
	"github.com/crystal-mush/gotinyclient/pkg/telnet"
	"github.com/crystal-mush/gotinyclient/pkg/world"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("CLIENT_CONF", ""), "Path to client config file (env: CLIENT_CONF)")
	host := flag.String("host", envDefault("CLIENT_HOST", ""), "MUD host, overrides config (env: CLIENT_HOST)")
	port := flag.Int("port", 0, "MUD port, overrides config (env: CLIENT_PORT)")
	worldFile := flag.String("world", envDefault("CLIENT_WORLD", ""), "Path to world definition database (env: CLIENT_WORLD)")
	stateDir := flag.String("statedir", envDefault("CLIENT_STATEDIR", ""), "Directory for per-scope state files (env: CLIENT_STATEDIR)")
	logFile := flag.String("log", envDefault("CLIENT_LOG", ""), "Session log file (env: CLIENT_LOG)")
	metricsAddr := flag.String("metrics", envDefault("CLIENT_METRICS", ""), "Prometheus listen address, empty to disable (env: CLIENT_METRICS)")
	flag.Parse()

	cfg := world.DefaultConfig()
	if *confFile != "" {
		loaded, err := world.LoadConfig(*confFile)
		if err != nil {
			log.Fatalf("CONFIG: %v", err)
		}
		cfg = loaded
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port == 0 {
		if envPort := os.Getenv("CLIENT_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *worldFile != "" {
		cfg.WorldFile = *worldFile
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	if err := run(cfg); err != nil {
		log.Fatalf("CLIENT: %v", err)
	}
}

func run(cfg *world.Config) error {
	store, err := boltstore.Open(cfg.WorldFile)
	if err != nil {
		return err
	}
	defer store.Close()

	var recall *scrollback.Store
	if cfg.ScrollbackFile != "" {
		if recall, err = scrollback.Open(cfg.ScrollbackFile, cfg.ScrollbackLines); err != nil {
			return err
		}
		defer recall.Close()
	}

	var logw io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening log %s: %w", cfg.LogFile, err)
		}
		defer f.Close()
		logw = f
	}

	var metrics *world.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = world.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		go func() {
			log.Printf("METRICS: listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("METRICS: %v", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Printf("CLIENT: connecting to %s", addr)
	conn, err := telnet.Dial(context.Background(), addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []world.Option{
		world.WithTransport(conn),
		world.WithStateDir(cfg.StateDir),
		world.WithOutputSink(func(text string) { fmt.Println(text) }),
	}
	if logw != nil {
		opts = append(opts, world.WithLog(logw))
	}
	if metrics != nil {
		opts = append(opts, world.WithMetrics(metrics))
	}
	w, err := world.New(cfg.WorldName, opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := loadWorldDefinitions(w, store); err != nil {
		return err
	}
	if err := w.LoadWorldState(); err != nil {
		log.Printf("STATE: %v", err)
	}
	for _, path := range cfg.Plugins {
		p, err := w.LoadPlugin(path)
		if err != nil {
			log.Printf("PLUGIN: %v", err)
			continue
		}
		log.Printf("PLUGIN: loaded %s (sequence %d)", path, p.Sequence)
	}
	w.NotifyConnect()

	session := &session{w: w, conn: conn, recall: recall, logw: logw}
	err = session.loop()

	w.NotifyDisconnect()
	if serr := w.SaveAllState(); serr != nil {
		log.Printf("STATE: %v", serr)
	}
	if serr := saveWorldDefinitions(w, store); serr != nil {
		log.Printf("STORE: %v", serr)
	}
	return err
}

// loadWorldDefinitions installs the stored world triggers, aliases,
// timers and variables. Definitions that no longer validate are skipped
// with a log line rather than aborting startup.
func loadWorldDefinitions(w *world.World, store *boltstore.Store) error {
	triggers, err := store.Triggers()
	if err != nil {
		return err
	}
	for _, t := range triggers {
		if err := w.AddTrigger("", t); err != nil {
			log.Printf("STORE: skipping trigger: %v", err)
		}
	}
	aliases, err := store.Aliases()
	if err != nil {
		return err
	}
	for _, a := range aliases {
		if err := w.AddAlias("", a); err != nil {
			log.Printf("STORE: skipping alias: %v", err)
		}
	}
	timers, err := store.Timers()
	if err != nil {
		return err
	}
	for _, t := range timers {
		if err := w.AddTimer("", t); err != nil {
			log.Printf("STORE: skipping timer: %v", err)
		}
	}
	vars, err := store.Variables()
	if err != nil {
		return err
	}
	for name, contents := range vars {
		if err := w.SetVariable("", name, contents); err != nil {
			log.Printf("STORE: skipping variable %s: %v", name, err)
		}
	}
	return nil
}

// saveWorldDefinitions writes the world scope's entities back to the
// store so additions made during the session survive a restart.
func saveWorldDefinitions(w *world.World, store *boltstore.Store) error {
	names, _ := w.TriggerList("")
	for _, name := range names {
		t, err := w.Trigger("", name)
		if err != nil {
			continue
		}
		if t.Temporary {
			continue
		}
		if err := store.PutTrigger(t); err != nil {
			return err
		}
	}
	names, _ = w.AliasList("")
	for _, name := range names {
		a, err := w.Alias("", name)
		if err != nil || a.Temporary {
			continue
		}
		if err := store.PutAlias(a); err != nil {
			return err
		}
	}
	names, _ = w.TimerList("")
	for _, name := range names {
		t, err := w.Timer("", name)
		if err != nil || t.Temporary {
			continue
		}
		if err := store.PutTimer(t); err != nil {
			return err
		}
	}
	vnames, _ := w.VariableList("")
	for _, name := range vnames {
		v, err := w.GetVariable("", name)
		if err != nil {
			continue
		}
		if err := store.PutVariable(name, v); err != nil {
			return err
		}
	}
	return nil
}

// session serializes the three event sources onto one loop: received
// lines, typed commands and the periodic tick. The engine itself holds
// no locks and is only touched from here.
type session struct {
	w      *world.World
	conn   *telnet.Conn
	recall *scrollback.Store
	logw   io.Writer
}

func (s *session) loop() error {
	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-s.conn.Lines():
			if !ok {
				log.Printf("CLIENT: connection closed")
				return nil
			}
			s.handleLine(line)
		case cmd, ok := <-input:
			if !ok {
				return nil
			}
			if cmd == "/quit" {
				return nil
			}
			if strings.HasPrefix(cmd, "/recall") {
				s.handleRecall(strings.TrimSpace(strings.TrimPrefix(cmd, "/recall")))
				continue
			}
			s.handleCommand(cmd)
		case now := <-ticker.C:
			s.drain(s.w.Tick(now))
		}
	}
}

func (s *session) handleLine(line string) {
	if s.recall != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.recall.Append(ctx, time.Now(), line); err != nil {
			log.Printf("SCROLLBACK: %v", err)
		}
		cancel()
	}
	res := s.w.ProcessLine(line)
	if !res.Omit {
		fmt.Println(line)
	}
	if s.logw != nil && !res.OmitLog {
		fmt.Fprintln(s.logw, line)
	}
	s.drain(res)
}

func (s *session) handleCommand(cmd string) {
	res := s.w.Execute(cmd)
	if !res.Handled {
		if err := s.conn.Send([]byte(cmd + "\n")); err != nil {
			log.Printf("CLIENT: %v", err)
		}
	}
	s.drain(res)
}

// handleRecall answers /recall N or /recall <text>.
func (s *session) handleRecall(arg string) {
	if s.recall == nil {
		fmt.Println("recall is disabled")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lines []scrollback.Line
	var err error
	if n, convErr := strconv.Atoi(arg); convErr == nil && n > 0 {
		lines, err = s.recall.Recent(ctx, n)
	} else if arg != "" {
		lines, err = s.recall.Search(ctx, arg, 20)
	} else {
		lines, err = s.recall.Recent(ctx, 20)
	}
	if err != nil {
		log.Printf("SCROLLBACK: %v", err)
		return
	}
	for _, l := range lines {
		fmt.Printf("%s %s\n", l.When.Format("15:04:05"), l.Text)
	}
}

// drain prints pass output and feeds pending input back through the
// command path.
func (s *session) drain(res *world.Result) {
	for _, out := range res.Output {
		fmt.Println(out)
	}
	pending := res.Input
	for len(pending) > 0 {
		cmd := pending[0]
		pending = pending[1:]
		next := s.w.Execute(cmd)
		if !next.Handled {
			if err := s.conn.Send([]byte(cmd + "\n")); err != nil {
				log.Printf("CLIENT: %v", err)
			}
		}
		for _, out := range next.Output {
			fmt.Println(out)
		}
		pending = append(pending, next.Input...)
	}
}

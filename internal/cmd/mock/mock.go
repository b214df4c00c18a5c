// Package mock parses the inference mock's configuration and runs it in
// record or replay mode.
package mock

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/inference-mock/internal/app/server"
	"github.com/louisbranch/inference-mock/internal/backend"
	"github.com/louisbranch/inference-mock/internal/catalog"
	entrypoint "github.com/louisbranch/inference-mock/internal/platform/cmd"
	"github.com/louisbranch/inference-mock/internal/platform/timeouts"
	"github.com/louisbranch/inference-mock/internal/recording"
	transportgrpc "github.com/louisbranch/inference-mock/internal/transport/grpc"
)

// Config holds mock command configuration.
type Config struct {
	Record      bool          `env:"INFERENCE_MOCK_RECORD"`
	RemoteHost  string        `env:"INFERENCE_MOCK_REMOTE_HOST" envDefault:"host.docker.internal"`
	Suffix      string        `env:"INFERENCE_MOCK_SUFFIX" envDefault:"0"`
	ArchiveDir  string        `env:"INFERENCE_MOCK_ARCHIVE_DIR" envDefault:"."`
	Ports       []int         `env:"INFERENCE_MOCK_PORTS"`
	PIDFile     string        `env:"INFERENCE_MOCK_PID_FILE" envDefault:"/tmp/triton-mock-server.pid"`
	DialTimeout time.Duration `env:"INFERENCE_MOCK_DIAL_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Ports) == 0 {
		cfg.Ports = slices.Clone(catalog.ListenPorts)
	}
	fs.BoolVar(&cfg.Record, "record", cfg.Record, "Forward calls to the remote backends and record their responses")
	fs.StringVar(&cfg.RemoteHost, "remote-host", cfg.RemoteHost, "Host running the real inference backends (record mode)")
	fs.StringVar(&cfg.Suffix, "suffix", cfg.Suffix, "Recording archive suffix")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Directory holding recording archives")
	fs.Var((*portList)(&cfg.Ports), "ports", "Comma separated ports to serve on")
	fs.StringVar(&cfg.PIDFile, "pid-file", cfg.PIDFile, "PID file path (empty disables)")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Backend connect and readiness timeout (record mode)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values flags and the environment cannot constrain.
func (c Config) Validate() error {
	if len(c.Ports) == 0 {
		return errors.New("at least one port is required")
	}
	seen := make(map[int]bool, len(c.Ports))
	for _, port := range c.Ports {
		if port < 0 || port > 65535 {
			return fmt.Errorf("port %d is out of range", port)
		}
		if port != 0 && seen[port] {
			return fmt.Errorf("port %d is listed twice", port)
		}
		seen[port] = true
	}
	if _, err := recording.ArchivePath(c.ArchiveDir, c.Suffix); err != nil {
		return err
	}
	if c.Record {
		if strings.TrimSpace(c.RemoteHost) == "" {
			return errors.New("remote host is required in record mode")
		}
		if c.DialTimeout <= 0 {
			return errors.New("dial timeout must be positive")
		}
	}
	return nil
}

// Mode returns the serving mode selected by the config.
func (c Config) Mode() transportgrpc.Mode {
	if c.Record {
		return transportgrpc.ModeRecord
	}
	return transportgrpc.ModeReplay
}

// Run starts the mock and blocks until ctx ends. In record mode the captured
// traffic is saved once every listener has stopped.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{ShutdownTimeout: timeouts.Shutdown}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMock, options, func(ctx context.Context) error {
		return run(ctx, cfg, catalog.Endpoints)
	})
}

func run(ctx context.Context, cfg Config, endpoints []catalog.Endpoint) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	archivePath, err := recording.ArchivePath(cfg.ArchiveDir, cfg.Suffix)
	if err != nil {
		return err
	}

	release, err := writePIDFile(cfg.PIDFile)
	if err != nil {
		return err
	}
	defer release()

	log.Printf("Starting server in %s mode...", cfg.Mode())
	var (
		store *recording.Store
		pool  *backend.Pool
	)
	if cfg.Record {
		addrs, err := catalog.BackendAddrs(cfg.RemoteHost, endpoints)
		if err != nil {
			return err
		}
		pool, err = backend.Dial(ctx, addrs, backend.DialOptions{Timeout: cfg.DialTimeout})
		if err != nil {
			return err
		}
		defer func() {
			if err := pool.Close(); err != nil {
				log.Printf("close backends: %v", err)
			}
		}()
		store = recording.NewStore()
	} else {
		store, err = recording.LoadStore(archivePath)
		if err != nil {
			return err
		}
		log.Printf("loaded recording %s (%d models)", archivePath, len(store.Models()))
	}

	service, err := transportgrpc.NewInferenceService(cfg.Mode(), store, pool)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg.Ports, service)
	if err != nil {
		return err
	}

	serveErr := srv.Serve(ctx)
	log.Printf("Shutdown was signaled")
	if !cfg.Record {
		return serveErr
	}
	log.Printf("saving recording to %s", archivePath)
	if err := recording.SaveStore(archivePath, store); err != nil {
		return errors.Join(serveErr, err)
	}
	for _, model := range store.Models() {
		stats := store.Stats(model)
		log.Printf("recorded %s: %d infer, %d config, %d stream", model, stats.Infer, stats.Config, stats.StreamInfer)
	}
	return serveErr
}

// writePIDFile writes the process ID to path and returns a func removing it.
// An empty path disables the PID file.
func writePIDFile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("remove pid file: %v", err)
		}
	}, nil
}

// portList is a flag.Value for comma separated ports.
type portList []int

func (p *portList) String() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, len(*p))
	for _, port := range *p {
		parts = append(parts, strconv.Itoa(port))
	}
	return strings.Join(parts, ",")
}

func (p *portList) Set(value string) error {
	var ports []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid port %q", part)
		}
		ports = append(ports, port)
	}
	*p = ports
	return nil
}

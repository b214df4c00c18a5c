package mock

import (
	"context"
	"flag"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/inference-mock/internal/catalog"
	platformgrpc "github.com/louisbranch/inference-mock/internal/platform/grpc"
	"github.com/louisbranch/inference-mock/internal/protocol/inference"
	"github.com/louisbranch/inference-mock/internal/recording"
	"github.com/louisbranch/inference-mock/internal/testkit/inferencefakes"
	transportgrpc "github.com/louisbranch/inference-mock/internal/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mock", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Record {
		t.Fatal("expected replay mode by default")
	}
	if cfg.Mode() != transportgrpc.ModeReplay {
		t.Fatalf("expected replay mode, got %s", cfg.Mode())
	}
	if cfg.RemoteHost != "host.docker.internal" {
		t.Fatalf("expected default remote host, got %q", cfg.RemoteHost)
	}
	if cfg.Suffix != "0" {
		t.Fatalf("expected default suffix 0, got %q", cfg.Suffix)
	}
	if !slices.Equal(cfg.Ports, catalog.ListenPorts) {
		t.Fatalf("expected default ports %v, got %v", catalog.ListenPorts, cfg.Ports)
	}
	if cfg.PIDFile != "/tmp/triton-mock-server.pid" {
		t.Fatalf("expected default pid file, got %q", cfg.PIDFile)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("INFERENCE_MOCK_SUFFIX", "env")
	fs := flag.NewFlagSet("mock", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{
		"-record",
		"-remote-host", "10.0.0.5",
		"-ports", "9001, 9002",
		"-archive-dir", "/var/recordings",
		"-pid-file", "",
		"-dial-timeout", "3s",
	})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !cfg.Record || cfg.Mode() != transportgrpc.ModeRecord {
		t.Fatal("expected record mode")
	}
	if cfg.RemoteHost != "10.0.0.5" {
		t.Fatalf("expected remote host override, got %q", cfg.RemoteHost)
	}
	if cfg.Suffix != "env" {
		t.Fatalf("expected env suffix, got %q", cfg.Suffix)
	}
	if !slices.Equal(cfg.Ports, []int{9001, 9002}) {
		t.Fatalf("expected port override, got %v", cfg.Ports)
	}
	if cfg.ArchiveDir != "/var/recordings" || cfg.PIDFile != "" || cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestParseConfigPortsFromEnv(t *testing.T) {
	t.Setenv("INFERENCE_MOCK_PORTS", "7001,7002")
	cfg, err := ParseConfig(flag.NewFlagSet("mock", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !slices.Equal(cfg.Ports, []int{7001, 7002}) {
		t.Fatalf("expected env ports, got %v", cfg.Ports)
	}
}

func TestParseConfigDefaultPortsAreCopied(t *testing.T) {
	cfg, err := ParseConfig(flag.NewFlagSet("mock", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Ports[0] = 1
	if catalog.ListenPorts[0] == 1 {
		t.Fatal("expected config ports not to alias the catalog defaults")
	}
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad port", args: []string{"-ports", "80x"}},
		{name: "port range", args: []string{"-ports", "70000"}},
		{name: "duplicate port", args: []string{"-ports", "9001,9001"}},
		{name: "no ports", args: []string{"-ports", ","}},
		{name: "suffix path", args: []string{"-suffix", "../x"}},
		{name: "empty host", args: []string{"-record", "-remote-host", " "}},
		{name: "dial timeout", args: []string{"-record", "-dial-timeout", "0s"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := flag.NewFlagSet("mock", flag.ContinueOnError)
			fs.SetOutput(new(strings.Builder))
			if _, err := ParseConfig(fs, tc.args); err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
		})
	}
}

func TestPortListString(t *testing.T) {
	ports := portList{8004, 8005}
	if got := ports.String(); got != "8004,8005" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.pid")
	release, err := writePIDFile(path)
	if err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
	release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}

	noop, err := writePIDFile("")
	if err != nil {
		t.Fatalf("disabled pid file: %v", err)
	}
	noop()
}

func TestRunReplayFailsWithoutArchive(t *testing.T) {
	cfg := Config{ArchiveDir: t.TempDir(), Suffix: "missing", Ports: []int{0}}
	if err := run(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing archive")
	}
}

func TestRunRecordFailsWhenBackendUnreachable(t *testing.T) {
	fake := inferencefakes.StartBackend(t, &inferencefakes.Backend{})
	port := backendPort(t, fake)
	fake.Stop()

	cfg := Config{
		Record:      true,
		RemoteHost:  "127.0.0.1",
		ArchiveDir:  t.TempDir(),
		Suffix:      "down",
		Ports:       []int{0},
		DialTimeout: 300 * time.Millisecond,
	}
	endpoints := []catalog.Endpoint{{Models: []string{"llama_7b"}, Port: port}}
	if err := run(context.Background(), cfg, endpoints); err == nil {
		t.Fatal("expected dial failure")
	}
}

// TestRecordThenReplay drives a full record session against a fake backend,
// then serves the saved archive in replay mode.
func TestRecordThenReplay(t *testing.T) {
	fake := inferencefakes.StartBackend(t, &inferencefakes.Backend{})
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "mock.pid")

	recordPort := freePort(t)
	recordCfg := Config{
		Record:      true,
		RemoteHost:  "127.0.0.1",
		ArchiveDir:  dir,
		Suffix:      "it",
		Ports:       []int{recordPort},
		PIDFile:     pidFile,
		DialTimeout: 2 * time.Second,
	}
	endpoints := []catalog.Endpoint{{Models: []string{"ner", "llama_7b"}, Port: backendPort(t, fake)}}

	var recorded []string
	runUntilDone(t, recordCfg, endpoints, func(client inference.GRPCInferenceServiceClient) {
		if _, err := os.Stat(pidFile); err != nil {
			t.Fatalf("expected pid file while running: %v", err)
		}
		for _, id := range []string{"a", "b"} {
			resp, err := client.ModelInfer(context.Background(), inferencefakes.InferRequest("ner", id))
			if err != nil {
				t.Fatalf("record infer: %v", err)
			}
			recorded = append(recorded, inferencefakes.Payload(resp))
		}
	})
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}

	archivePath, err := recording.ArchivePath(dir, "it")
	if err != nil {
		t.Fatalf("archive path: %v", err)
	}
	store, err := recording.LoadStore(archivePath)
	if err != nil {
		t.Fatalf("load archive: %v", err)
	}
	if got := store.Stats("ner").Infer; got != 2 {
		t.Fatalf("expected 2 recorded responses, got %d", got)
	}

	replayCfg := Config{ArchiveDir: dir, Suffix: "it", Ports: []int{freePort(t)}}
	runUntilDone(t, replayCfg, nil, func(client inference.GRPCInferenceServiceClient) {
		for i, want := range recorded {
			resp, err := client.ModelInfer(context.Background(), inferencefakes.InferRequest("ner", "x"))
			if err != nil {
				t.Fatalf("replay infer %d: %v", i, err)
			}
			if got := inferencefakes.Payload(resp); got != want {
				t.Fatalf("replay infer %d: expected %q, got %q", i, want, got)
			}
		}
		_, err := client.ModelInfer(context.Background(), inferencefakes.InferRequest("ner", "x"))
		if status.Code(err) != codes.Unavailable {
			t.Fatalf("expected unavailable after exhaustion, got %v", err)
		}
	})

	// Replay never rewrites the archive.
	reloaded, err := recording.LoadStore(archivePath)
	if err != nil {
		t.Fatalf("reload archive: %v", err)
	}
	if got := reloaded.Stats("ner").Infer; got != 2 {
		t.Fatalf("expected archive untouched by replay, got %d", got)
	}
}

// runUntilDone runs the mock, calls exercise against its first port, then
// cancels and waits for run to return.
func runUntilDone(t *testing.T, cfg Config, endpoints []catalog.Endpoint, exercise func(inference.GRPCInferenceServiceClient)) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- run(ctx, cfg, endpoints)
	}()

	conn, err := grpc.NewClient(net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Ports[0])),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial mock: %v", err)
	}
	defer conn.Close()
	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	if err := platformgrpc.WaitForHealth(waitCtx, conn, inference.ServiceName, t.Logf); err != nil {
		t.Fatalf("wait for mock: %v", err)
	}
	exercise(inference.NewGRPCInferenceServiceClient(conn))

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func backendPort(t *testing.T, fake *inferencefakes.Backend) int {
	t.Helper()
	_, port, err := net.SplitHostPort(fake.Addr())
	if err != nil {
		t.Fatalf("split backend addr: %v", err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse backend port: %v", err)
	}
	return n
}

package cmd

import (
	"testing"

	"github.com/watchhub/signalhub/internal/config"
)

func TestNewCommand_HasServeAndDeviceAgentSubcommands(t *testing.T) {
	t.Parallel()
	root := NewCommand("test", "abc123")

	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("expected to find serve subcommand: %v", err)
	}
	if serve.Use != "serve" {
		t.Fatalf("unexpected command: %s", serve.Use)
	}

	deviceAgent, _, err := root.Find([]string{"device-agent"})
	if err != nil {
		t.Fatalf("expected to find device-agent subcommand: %v", err)
	}
	if deviceAgent.Use != "device-agent" {
		t.Fatalf("unexpected command: %s", deviceAgent.Use)
	}
}

func TestDeviceAgentCommand_RequiresFlags(t *testing.T) {
	t.Parallel()
	root := NewCommand("test", "abc123")
	root.SetArgs([]string{"device-agent"})
	root.SetOut(new(discardWriter))
	root.SetErr(new(discardWriter))

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error when required device-agent flags are missing")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSetupTracing_EmptyEndpoint_ReturnsNoopCleanup(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Metrics.OTLPEndpoint = ""

	cleanup, err := setupTracing(cfg)
	if err != nil {
		t.Fatalf("expected no error for empty OTLP endpoint, got: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected non-nil no-op cleanup function for empty OTLP endpoint")
	}
	// The no-op cleanup should succeed without error.
	if err := cleanup(t.Context()); err != nil {
		t.Fatalf("expected no-op cleanup to return nil error, got: %v", err)
	}
}

func TestInitTracer_ValidEndpoint_ReturnsCleanup(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Metrics.OTLPEndpoint = "localhost:4317"

	// gRPC connections are lazy, so a well-formed endpoint won't fail at
	// creation time. Verify that initTracer returns a non-nil cleanup
	// and no error.
	cleanup, err := initTracer(cfg)
	if err != nil {
		t.Fatalf("expected no error for well-formed endpoint, got: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected non-nil cleanup function for well-formed endpoint")
	}
}

func TestSetupTracing_WithEndpoint_ReturnsCleanupAndNoError(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Metrics.OTLPEndpoint = "localhost:4317"

	cleanup, err := setupTracing(cfg)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected non-nil cleanup function when OTLP endpoint is set")
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"screen-translate/src/control"
	"screen-translate/src/pipeline"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.action != "status" {
		t.Fatalf("Expected default action=status, got %q", opts.action)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--action", "toggle", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 || opts.action != "toggle" || opts.deadline != 7*time.Second {
		t.Fatalf("opts = %+v", opts)
	}
}

type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) Do(_ context.Context, a control.Action) (pipeline.Status, error) {
	if c.calls.Add(1)%2 == 0 {
		return pipeline.Status{}, errors.New("busy")
	}
	return pipeline.Status{}, nil
}

func (c *countingClient) Status(context.Context) (pipeline.Status, error) {
	c.calls.Add(1)
	return pipeline.Status{}, nil
}

func TestRunCountsOutcomes(t *testing.T) {
	var out bytes.Buffer
	client := &countingClient{}
	if err := runWithOptions(stressOptions{n: 4, action: "toggle", deadline: time.Second}, client, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "launched=4 ok=2 timeout=0 err=2") {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	if err := runWithOptions(stressOptions{n: 3, action: "status", deadline: time.Second}, client, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ok=3") {
		t.Fatalf("output = %q", out.String())
	}
}

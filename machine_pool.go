// machine_pool.go - Running independent machine instances side by side

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// InstanceFunc is called with each started machine before it is closed.
type InstanceFunc func(id int, m *Machine) error

// RunInstances builds and starts n machines from the same configuration,
// each on its own goroutine with its own address space and devices. The
// first failure cancels the rest. after may be nil.
func RunInstances(ctx context.Context, n int, cfg MachineConfig, resolver FileResolver, after InstanceFunc) error {
	if n < 1 {
		return fmt.Errorf("instances: need at least 1, got %d", n)
	}

	out := cfg.Log
	if out == nil {
		out = io.Discard
	}
	shared := &lockedWriter{w: out}

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < n; id++ {
		id := id
		g.Go(func() error {
			icfg := cfg
			icfg.Log = &prefixWriter{prefix: fmt.Sprintf("[%d] ", id), w: shared}
			m, err := BuildAndStart(ctx, icfg, resolver)
			if err != nil {
				if m != nil {
					m.Close()
				}
				return fmt.Errorf("instance %d: %w", id, err)
			}
			defer m.Close()
			if after != nil {
				if err := after(id, m); err != nil {
					return fmt.Errorf("instance %d: %w", id, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// lockedWriter serialises writes from several instances.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// prefixWriter tags every line with the instance it came from.
type prefixWriter struct {
	prefix string
	w      io.Writer
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	var buf bytes.Buffer
	for _, line := range bytes.SplitAfter(b, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		buf.WriteString(p.prefix)
		buf.Write(line)
	}
	if _, err := p.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(b), nil
}

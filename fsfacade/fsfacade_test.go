package fsfacade_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Torbatti/tardy"
	"github.com/Torbatti/tardy/aio"
	"github.com/Torbatti/tardy/fsfacade"
)

func TestOpenReadCloseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(path, []byte("round-trip"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	backend, err := aio.NewSim(aio.DefaultOptions())
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	rt, err := tardy.New(backend, tardy.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var read string
	_, err = fsfacade.Open(rt, struct{}{}, path, func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx struct{}, openRes aio.Result) error {
		fd := openRes.FD
		buf := make([]byte, 32)
		_, err := fsfacade.Read(rt, buf, fd, buf, 0, func(rt *tardy.Runtime, meta tardy.TaskMeta, buf []byte, readRes aio.Result) error {
			read = string(buf[:readRes.Value])
			_, err := fsfacade.Close(rt, struct{}{}, fd, func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx struct{}, closeRes aio.Result) error {
				return nil
			})
			return err
		})
		return err
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rt.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if read != "round-trip" {
		t.Fatalf("read = %q, want round-trip", read)
	}
}

package netfacade_test

import (
	"testing"

	"github.com/Torbatti/tardy"
	"github.com/Torbatti/tardy/aio"
	"github.com/Torbatti/tardy/netfacade"
)

func TestAcceptRecvRoundTrip(t *testing.T) {
	backend, err := aio.NewSim(aio.DefaultOptions())
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	rt, err := tardy.New(backend, tardy.DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	listener := backend.Listen()
	clientFD, err := backend.Dial(listener)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := backend.InjectBytes(clientFD, []byte("ping")); err != nil {
		t.Fatalf("InjectBytes: %v", err)
	}

	var received string
	_, err = netfacade.Accept(rt, struct{}{}, listener, func(rt *tardy.Runtime, meta tardy.TaskMeta, ctx struct{}, acceptRes aio.Result) error {
		peer := acceptRes.Socket
		buf := make([]byte, 8)
		_, err := netfacade.Recv(rt, buf, peer, buf, func(rt *tardy.Runtime, meta tardy.TaskMeta, buf []byte, recvRes aio.Result) error {
			received = string(buf[:recvRes.Value])
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := rt.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if received != "ping" {
		t.Fatalf("received = %q, want ping", received)
	}
}

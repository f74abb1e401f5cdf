package rpc

import (
	"context"
	"errors"
	"log"
	"net"
	"time"
)

// Serve accepts connections on ln until ctx is cancelled. Each connection
// is served by handler; onConn, when set, receives every new Conn so the
// caller can push on it.
func Serve(ctx context.Context, ln net.Listener, handler Handler, onConn func(*Conn)) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("rpc: temporary accept error: %v", err)
				time.Sleep(250 * time.Millisecond)
				continue
			}
			return err
		}
		conn := NewConn(nc, handler)
		if onConn != nil {
			onConn(conn)
		}
	}
}

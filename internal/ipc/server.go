package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// requestReadTimeout caps how long a connected client may take to send its
// command line.
const requestReadTimeout = 2 * time.Second

// Handler answers one control command for the running interview.
type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers control connections on listener until ctx is cancelled.
// Each connection carries exactly one request and one response.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			serveConn(ctx, conn, handler)
		}()
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))

	var req Request
	if err := readMessage(bufio.NewReader(conn), &req); err != nil {
		reason := "read request"
		if errors.Is(err, errMalformed) {
			reason = "decode request"
		}
		_ = writeMessage(conn, Response{Error: fmt.Sprintf("%s: %v", reason, err)})
		return
	}
	_ = writeMessage(conn, handler.Handle(ctx, req))
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/constants"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/fileio"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/networking"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/server/reassembly"
	"github.com/TomShtern/client-server-encrypted-backup-framework-clean-sub002/storage"
)

// Server accepts client connections and drives one session per connection.
// The reassembly table and the record store are the only state shared
// between sessions.
type Server struct {
	table   *reassembly.Table
	records storage.RecordStore
	blobs   *fileio.BlobWriter
	nextTag atomic.Uint64
	done    chan struct{}
}

// New wires a server from its collaborators
func New(records storage.RecordStore, blobs *fileio.BlobWriter, options ...reassembly.Option) *Server {
	return &Server{
		table:   reassembly.NewTable(options...),
		records: records,
		blobs:   blobs,
		done:    make(chan struct{}),
	}
}

// Listen binds the listening socket
func (s *Server) Listen(addr string) (net.Listener, error) {
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not bind listening socket on %s: %w", addr, err)
	}
	return listener, nil
}

// Serve accepts connections until the listener closes. Each accepted
// connection gets its own goroutine; a session blocks only on its own
// socket, never on another client's.
func (s *Server) Serve(listener net.Listener) error {
	defer close(s.done)
	go s.reaper()

	fmt.Println("Listening on " + listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			fmt.Println("Failed to establish incoming connection")
			continue
		}
		// Set TCP_NODELAY to always immediately send.
		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}

		fmt.Println("New connection from: " + conn.RemoteAddr().String())

		session := &Session{
			conn:   conn,
			server: s,
			tag:    s.nextTag.Add(1),
		}
		go session.serve()
	}
}

// StartListening binds and serves in one call
func (s *Server) StartListening(addr string) error {
	listener, err := s.Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Table exposes the shared reassembly table
func (s *Server) Table() *reassembly.Table {
	return s.table
}

// reaper periodically drops reassembly entries that went quiet. Abandoned
// transfers are reclaimed here rather than on disconnect, so a client that
// drops and reconnects quickly can still finish.
func (s *Server) reaper() {
	ticker := time.NewTicker(constants.REAPER_INTERVAL * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if reaped := s.table.Reap(constants.REASSEMBLY_TIMEOUT * time.Second); reaped > 0 {
				fmt.Println("Reaped", reaped, "abandoned transfer(s)")
			}
		case <-s.done:
			return
		}
	}
}

// serve runs one session's request loop. Framing errors are fatal to the
// connection; operation errors are answered and the loop continues.
func (c *Session) serve() {
	defer c.conn.Close()

	for {
		request, err := networking.ReadRequest(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("Client disconnected:", c.conn.RemoteAddr().String())
				return
			}
			fmt.Println(c.conn.RemoteAddr().String() + " " + err.Error())
			if errors.Is(err, networking.ErrFraming) || errors.Is(err, networking.ErrResourceLimit) {
				c.sendError(err)
			}
			return
		}

		if request.Version != constants.PROTOCOL_VERSION {
			fmt.Println("Unsupported protocol version", request.Version, "from", c.conn.RemoteAddr().String())
			c.sendError(fmt.Errorf("%w: unsupported protocol version %d",
				networking.ErrProtocol, request.Version))
			return
		}

		c.dispatch(request)
	}
}

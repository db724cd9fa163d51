// Package server wires the store, pub/sub registry, and replication
// registry into a running listener: the per-connection state machine
// (Session), the command dispatch table, and the accept/bootstrap loop.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"kvserver/internal/protocol"
	"kvserver/internal/pubsub"
	"kvserver/internal/rdbsnap"
	"kvserver/internal/replication"
	"kvserver/internal/store"
)

// Server is the top-level process state: one shared keyspace, one pub/sub
// registry, one replica registry, and the accept loop that drives them.
type Server struct {
	cfg *Config

	store    *store.Store
	pubsub   *pubsub.Registry
	replicas *replication.Registry
	replID   string

	isMaster atomic.Bool

	listener net.Listener
	conns    sync.Map // int64 -> *Session
	nextID   atomic.Int64
	active   atomic.Int64

	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

// New builds a Server from cfg. It does not yet bind a listener or perform
// the replica handshake; call Start for that.
func New(cfg *Config) *Server {
	return &Server{
		cfg:        cfg,
		store:      store.New(),
		pubsub:     pubsub.New(),
		replicas:   replication.NewRegistry(),
		replID:     replication.GenerateReplID(),
		shutdownCh: make(chan struct{}),
	}
}

func (srv *Server) IsMaster() bool { return srv.isMaster.Load() }

// Start loads any snapshot on disk, performs the replica handshake if
// configured as a replica, binds the listener, and runs the accept loop
// until ctx is canceled or Shutdown is called.
func (srv *Server) Start(ctx context.Context) error {
	srv.isMaster.Store(srv.cfg.ReplicaOfHost == "")

	if err := srv.loadSnapshot(); err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	if !srv.IsMaster() {
		sess, r, err := srv.replicaHandshake()
		if err != nil {
			return fmt.Errorf("replica handshake: %w", err)
		}
		go srv.runReplicaLoop(sess, r)
	}

	addr := net.JoinHostPort(srv.cfg.Host, fmt.Sprintf("%d", srv.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	srv.listener = ln
	log.Printf("listening on %s", addr)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-srv.shutdownCh:
				return nil
			default:
				return err
			}
		}
		if srv.active.Load() >= int64(srv.cfg.MaxConnections) {
			conn.Close()
			continue
		}
		srv.wg.Add(1)
		go srv.handleConnection(conn)
	}
}

// Shutdown closes the listener and every tracked connection, then waits
// (bounded) for their goroutines to exit.
func (srv *Server) Shutdown() {
	select {
	case <-srv.shutdownCh:
		return
	default:
		close(srv.shutdownCh)
	}
	if srv.listener != nil {
		srv.listener.Close()
	}
	srv.conns.Range(func(_, v interface{}) bool {
		v.(*Session).close()
		return true
	})

	done := make(chan struct{})
	go func() {
		srv.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("shutdown timed out waiting for connections to close")
	}
}

func (srv *Server) loadSnapshot() error {
	if srv.cfg.Dir == "" || srv.cfg.DBFilename == "" {
		return nil
	}
	entries, err := rdbsnap.Load(filepath.Join(srv.cfg.Dir, srv.cfg.DBFilename))
	if err != nil {
		return err
	}
	for _, e := range entries {
		srv.store.SetString(e.Key, e.Value, e.ExpiresAt)
	}
	if len(entries) > 0 {
		log.Printf("loaded %d keys from snapshot", len(entries))
	}
	return nil
}

func (srv *Server) handleConnection(conn net.Conn) {
	defer srv.wg.Done()

	id := srv.nextID.Add(1)
	sess := newSession(id, conn)
	srv.conns.Store(id, sess)
	srv.active.Add(1)
	log.Printf("conn %s: accepted from %s", sess.PeerID, conn.RemoteAddr())
	defer func() {
		srv.conns.Delete(id)
		srv.active.Add(-1)
		for _, channel := range sess.subscribedChannels() {
			srv.pubsub.Unsubscribe(channel, sess)
		}
		sess.close()
		log.Printf("conn %s: closed", sess.PeerID)
	}()

	go sess.writeLoop()
	srv.readLoop(sess)
}

// readLoop decodes and dispatches frames from one client connection until
// the connection errors out or is closed.
func (srv *Server) readLoop(sess *Session) {
	r := bufio.NewReader(sess.conn)
	for {
		frame, consumed, err := protocol.Decode(r)
		if err != nil {
			if err != io.EOF {
				log.Printf("conn %s: closing after decode error: %v", sess.PeerID, err)
			}
			return
		}
		argv, ok := frame.StringArgs()
		if !ok || len(argv) == 0 {
			sess.Send(protocol.NewSimpleError("ERR Protocol error: expected array of bulk strings"))
			continue
		}

		reply, shouldSend := srv.Execute(sess, argv, consumed)
		if shouldSend && reply.Kind != 0 {
			sess.Send(reply)
		}
	}
}

// replicaHandshake performs the bootstrap handshake against the configured
// primary and applies the received snapshot. The handshake is a strict
// protocol exchange: any deviation from the expected response sequence is
// returned as an error, which the caller treats as fatal to the process
// rather than letting it run as an apparently-healthy server that silently
// never replicated.
func (srv *Server) replicaHandshake() (*Session, *bufio.Reader, error) {
	conn, r, result, err := replication.Handshake(srv.cfg.ReplicaOfHost, srv.cfg.ReplicaOfPort, srv.cfg.Port)
	if err != nil {
		return nil, nil, err
	}
	srv.replID = result.ReplID
	srv.replicas.AddOffset(int(result.Offset))

	if entries, err := rdbsnap.Parse(result.Payload); err == nil {
		for _, e := range entries {
			srv.store.SetString(e.Key, e.Value, e.ExpiresAt)
		}
	}

	sess := newSession(srv.nextID.Add(1), conn)
	sess.setFromMaster(true)
	go sess.writeLoop()
	return sess, r, nil
}

// runReplicaLoop reads the replicated command stream from an already
// handshaken primary connection as a permanent from-master Session.
func (srv *Server) runReplicaLoop(sess *Session, r *bufio.Reader) {
	for {
		frame, consumed, err := protocol.Decode(r)
		if err != nil {
			if err != io.EOF {
				log.Printf("replica link: closing after decode error: %v", err)
			}
			return
		}
		argv, ok := frame.StringArgs()
		if !ok || len(argv) == 0 {
			continue
		}
		reply, shouldSend := srv.Execute(sess, argv, consumed)
		if shouldSend && reply.Kind != 0 {
			sess.Send(reply)
		}
	}
}

// Package toplevel serves the command language over TCP.
//
// Each connection gets a fresh machine running one process. Statements end
// at a semicolon or a newline and are answered with a single signal byte.
// Statements that do not parse or that fault are answered with the Debug
// signal. The exit statement is answered with the Exit signal and ends the
// session.
package toplevel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/lang"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/addressing"
)

// DefaultAddress is where the server listens unless configured otherwise.
const DefaultAddress = "127.0.0.1:6379"

// Server accepts client sessions.
type Server struct {
	address       string
	socketCfgPath string
	cfg           addressing.Config
	hooks         []hooking.Hook
	ids           idgen.Generator
	logger        *log.Logger

	lock     sync.Mutex
	listener net.Listener
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// Listen binds the server address and writes the socket config file, if
// one is configured.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.address)
	}

	s.lock.Lock()
	s.listener = ln
	s.lock.Unlock()

	if s.socketCfgPath != "" {
		if err := s.writeSocketConfig(ln.Addr()); err != nil {
			ln.Close()
			return err
		}
	}

	s.logger.Printf("listening on %s", ln.Addr())

	return nil
}

// writeSocketConfig stores the bound host on the first line and the port on
// the second.
func (s *Server) writeSocketConfig(addr net.Addr) error {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return errors.WithStack(err)
	}

	content := fmt.Sprintf("%s\n%s", host, port)

	err = os.WriteFile(s.socketCfgPath, []byte(content), 0o644)
	if err != nil {
		return errors.Wrap(err, "writing socket config")
	}

	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Serve accepts sessions until ctx is done. It listens first if Listen was
// not called. Serve waits for the running sessions before returning.
func (s *Server) Serve(ctx context.Context) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	defer s.wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return errors.Wrap(err, "accepting session")
		}

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	session := s.openSession()
	defer s.closeSession(session)

	s.logger.Printf("%s: client %s connected", session.Name(), conn.RemoteAddr())

	statements := bufio.NewScanner(conn)
	statements.Split(splitStatements)

	for statements.Scan() {
		stmt := strings.TrimSpace(statements.Text())
		if stmt == "" {
			continue
		}

		sig, exit := s.execute(session, stmt+";")

		if _, err := conn.Write([]byte{byte(sig)}); err != nil {
			s.logger.Printf("%s: %v", session.Name(), err)
			return
		}

		if exit {
			s.logger.Printf("%s: client exited", session.Name())
			return
		}
	}

	if err := statements.Err(); err != nil {
		s.logger.Printf("%s: %v", session.Name(), err)
	}
}

// splitStatements splits client input at semicolons and newlines. The
// separator is dropped. Input left at the end of the stream is a statement
// too.
func splitStatements(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexAny(data, ";\n"); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}

	return 0, nil, nil
}

func (s *Server) execute(session *Session, stmt string) (machine.Signal, bool) {
	cmd, err := lang.ParseStatement(stmt)
	if err != nil {
		s.logger.Printf("%s: %v", session.Name(), err)
		return machine.SignalDebug, false
	}

	sig, err := session.Exec(cmd)
	if err != nil {
		s.logger.Printf("%s: %v", session.Name(), err)
	}

	_, exit := cmd.Request.(machine.Exit)

	return sig, exit && err == nil
}

func (s *Server) openSession() *Session {
	m := machine.MakeBuilder().
		WithConfig(s.cfg).
		Build("Session" + s.ids.Generate())

	for _, h := range s.hooks {
		m.AcceptHook(h)
	}

	session := newSession(m)

	s.lock.Lock()
	s.sessions[session.Name()] = session
	s.lock.Unlock()

	return session
}

func (s *Server) closeSession(session *Session) {
	s.lock.Lock()
	delete(s.sessions, session.Name())
	s.lock.Unlock()
}

// Machines lists the names of the machines of the open sessions.
func (s *Server) Machines() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Inspect calls f with the named machine while no command runs on it. It
// returns false if no open session has that machine.
func (s *Server) Inspect(name string, f func(m *machine.Machine)) bool {
	s.lock.Lock()
	session, found := s.sessions[name]
	s.lock.Unlock()

	if !found {
		return false
	}

	session.Inspect(f)

	return true
}

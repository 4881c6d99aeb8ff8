package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/3EleVen/android-system-bt/logger"
	"github.com/3EleVen/android-system-bt/service"
)

// Server accepts CLI connections on a unix domain socket and translates
// their requests into Adapter calls. One goroutine per connection; requests
// on a single connection are handled in order.
type Server struct {
	adapter *service.Adapter

	socketPath string
	listener   net.Listener
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

func NewServer(adapter *service.Adapter) *Server {
	return &Server{
		adapter:  adapter,
		stopChan: make(chan struct{}),
	}
}

// Start binds the socket and begins accepting connections.
func (s *Server) Start(socketPath string) error {
	// Remove a stale socket from a previous run.
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}
	s.socketPath = socketPath
	s.listener = listener

	logger.Info("ipc", "🔌 Listening at %s", socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *Server) Stop() {
	close(s.stopChan)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
	logger.Debug("ipc", "🧹 Server stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		// Accept deadline allows periodic stopChan checks.
		if ul, ok := s.listener.(*net.UnixListener); ok {
			ul.SetDeadline(time.Now().Add(1 * time.Second))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-s.stopChan:
				return
			default:
				logger.Warn("ipc", "Accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	logger.Debug("ipc", "📞 Client connected")

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("ipc", "Failed to parse request: %v", err)
			encoder.Encode(Response{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		resp := s.handleRequest(&req)
		if err := encoder.Encode(resp); err != nil {
			logger.Warn("ipc", "Failed to write response: %v", err)
			return
		}
	}

	logger.Debug("ipc", "🔌 Client disconnected")
}

func (s *Server) handleRequest(req *Request) Response {
	logger.DebugJSON("ipc", "Request "+req.Command, req)

	switch req.Command {
	case CommandEnable:
		if !s.adapter.Enable() {
			return Response{Error: "enable rejected"}
		}
		return Response{OK: true}

	case CommandDisable:
		if !s.adapter.Disable() {
			return Response{Error: "disable rejected"}
		}
		return Response{OK: true}

	case CommandGetState:
		return Response{OK: true, Value: s.adapter.GetState().String()}

	case CommandIsEnabled:
		return Response{OK: true, Value: fmt.Sprintf("%t", s.adapter.IsEnabled())}

	case CommandGetLocalAddress:
		return Response{OK: true, Value: s.adapter.GetAddress()}

	case CommandGetLocalName:
		return Response{OK: true, Value: s.adapter.GetName()}

	case CommandSetLocalName:
		if len(req.Args) != 1 {
			return Response{Error: "set-local-name takes exactly one argument"}
		}
		if !s.adapter.SetName(req.Args[0]) {
			return Response{Error: "set-local-name rejected"}
		}
		return Response{OK: true}

	case CommandAdapterInfo:
		info := []string{
			fmt.Sprintf("state: %s", s.adapter.GetState()),
			fmt.Sprintf("address: %s", s.adapter.GetAddress()),
			fmt.Sprintf("name: %s", s.adapter.GetName()),
			fmt.Sprintf("multi-advertising: %t", s.adapter.IsMultiAdvertisementSupported()),
		}
		return Response{OK: true, Value: strings.Join(info, "\n")}

	default:
		return Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

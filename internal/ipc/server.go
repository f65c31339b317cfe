package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/runner"
)

// Типы запросов
const (
	RequestPing    = "ping"
	RequestTrigger = "trigger"
)

// Request структура запроса от CLI
type Request struct {
	Type string `json:"type"`
	Job  string `json:"job,omitempty"`
}

// Response структура ответа CLI
type Response struct {
	Success  bool    `json:"success"`
	Error    string  `json:"error,omitempty"`
	Status   string  `json:"status,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	LogPath  string  `json:"log_path,omitempty"`
}

// Triggerer runs a job by reference.
type Triggerer interface {
	Trigger(ctx context.Context, ref string) (runner.Result, error)
}

// Server обрабатывает запросы CLI внутри процесса планировщика
type Server struct {
	logger  *logger.Logger
	trigger Triggerer
	socket  net.Listener
}

// NewServer создаёт IPC сервер
func NewServer(t Triggerer, log *logger.Logger) *Server {
	return &Server{trigger: t, logger: log.With(logger.Field{Key: "component", Value: "ipc"})}
}

// Serve listens on socketPath until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	// Старый сокет от упавшего процесса
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.socket = listener
	s.logger.Info("IPC server started", logger.Field{Key: "socket", Value: socketPath})

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("failed to accept connection", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.respond(conn, Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	switch req.Type {
	case RequestPing:
		s.respond(conn, Response{Success: true})
	case RequestTrigger:
		s.logger.Info("trigger requested", logger.Field{Key: "job", Value: req.Job})
		res, err := s.trigger.Trigger(ctx, req.Job)
		if err != nil {
			s.respond(conn, Response{Error: err.Error(), Status: string(res.Status)})
			return
		}
		s.respond(conn, Response{
			Success:  true,
			Status:   string(res.Status),
			Duration: res.Duration.Seconds(),
			LogPath:  res.LogPath,
		})
	default:
		s.respond(conn, Response{Error: fmt.Sprintf("unknown request type: %s", req.Type)})
	}
}

func (s *Server) respond(conn net.Conn, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Error("failed to send response", err)
	}
}

// Call sends req to the scheduler listening on socketPath and waits for
// the response; ctx bounds the whole exchange.
func Call(ctx context.Context, socketPath string, req Request) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	if !resp.Success {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

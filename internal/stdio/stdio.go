// Package stdio serves the MCP gateway over newline-delimited JSON-RPC on
// a reader/writer pair, the transport MCP hosts use when they launch the
// tool as a subprocess. One process is one reasoning session.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fastertools/ftl-tool-think/internal/mcpgw"
	"github.com/fastertools/ftl-tool-think/pkg/models"
)

// maxLineBytes bounds a single JSON-RPC message.
const maxLineBytes = 4 << 20

// Server reads requests line by line and writes one response line per
// request. Notifications get no response.
type Server struct {
	gateway   *mcpgw.Gateway
	sessionID string

	mu  sync.Mutex
	out io.Writer
}

// NewServer binds a gateway to a fresh process-lifetime session.
func NewServer(gw *mcpgw.Gateway) *Server {
	return &Server{gateway: gw, sessionID: uuid.New().String()}
}

// SessionID returns the session every request runs against.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Serve processes requests from in until EOF or ctx is canceled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			buf := make([]byte, len(line))
			copy(buf, line)
			select {
			case lines <- buf:
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	log.Info().Str("session", s.sessionID).Msg("stdio transport ready")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
				default:
				}
				return nil
			}
			if err := s.handleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) error {
	var req models.MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return s.write(mcpgw.ParseError(err))
	}

	resp := s.gateway.HandleJSONRPC(ctx, s.sessionID, &req)
	if resp == nil {
		return nil
	}
	return s.write(resp)
}

func (s *Server) write(resp *models.MCPResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

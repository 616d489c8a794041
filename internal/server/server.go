// Package server is the browser shell: a websocket endpoint that carries
// commands in and workspace state out, driven by a single session loop.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/lotas/filler/internal/applog"
	"nhooyr.io/websocket"
)

// IncomingMsg is a command from the browser page.
type IncomingMsg struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text,omitempty"`   // load: file contents
	Source string `json:"source,omitempty"` // load: file name, for exports
	Index  int    `json:"index"`            // toggle: topic index; select: summary index
	Title  string `json:"title,omitempty"`  // choose
	Format string `json:"format,omitempty"` // render
}

// OutgoingMsg is a reply or state push to the browser page.
type OutgoingMsg struct {
	Type  string        `json:"type"`
	ID    string        `json:"id,omitempty"`
	State *StatePayload `json:"state,omitempty"`
	Text  string        `json:"text,omitempty"`
	Error string        `json:"error,omitempty"`
	Code  string        `json:"code,omitempty"`
}

// Server manages the WebSocket connection to the page.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port: port,
		msgs: make(chan IncomingMsg, 64),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming commands.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether a page is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes a message to the connected page. With no page connected the
// message is dropped.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	applog.Info("ws.send", "type", msg.Type, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("websocket accept: %v", err)
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(8 << 20) // topic files are loaded inline

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)
		select {
		case s.msgs <- IncomingMsg{Type: "state"}:
		default:
		}

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "id", msg.ID)
			select {
			case s.msgs <- msg:
			default:
				applog.Warn("ws.dropped", "type", msg.Type, "id", msg.ID)
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())
	mux.HandleFunc("/", servePage)

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}

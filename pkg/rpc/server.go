package rpc

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/r3e-network/neo-go-core/internal/nlog"
)

// request/response are the JSON-RPC 2.0 envelope shapes.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  []interface{}   `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Server is the HTTP/WebSocket front end that turns wire JSON-RPC
// requests into Dispatch calls. It is a thin transport shim; every
// decision about what a method does lives in Methods/Dispatch.
type Server struct {
	node       *Node
	router     *httprouter.Router
	upgrader   websocket.Upgrader
	corsHandle http.Handler
	log        nlog.Logger
}

// NewServer builds a Server over node. enableCORS mirrors
// config.RPCSettings.EnableCORS, the cross-origin policy browser-based
// light clients need.
func NewServer(node *Node, enableCORS bool) *Server {
	s := &Server{
		node:     node,
		router:   httprouter.New(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      nlog.New("component", "rpc-server"),
	}
	s.router.POST("/", s.handleHTTP)
	s.router.GET("/ws", s.handleWebSocket)

	var h http.Handler = s.router
	if enableCORS {
		h = cors.AllowAll().Handler(h)
	}
	s.corsHandle = h
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.corsHandle.ServeHTTP(w, r) }

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}
	resp := s.process(body)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleWebSocket serves the streaming transport real Neo RPC clients
// use for `traverseiterator` polling loops: every inbound text frame is
// one JSON-RPC request, answered with one frame in turn.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			return
		}
		resp := s.process(body)
		payload, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (s *Server) process(body []byte) response {
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return response{JSONRPC: "2.0", Error: &Error{Code: -32700, Message: "Parse error"}}
	}
	result, rpcErr := Dispatch(s.node, req.Method, req.Params)
	if rpcErr != nil {
		return response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

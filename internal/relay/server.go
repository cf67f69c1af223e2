package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/drawroom/drawroom/canvas-go/internal/auth"
	"github.com/drawroom/drawroom/canvas-go/internal/board"
)

// Server wires the HTTP and websocket surface of the relay.
type Server struct {
	hub       *Hub
	store     *Store
	issuer    *auth.Issuer
	origins   []string
	devTokens bool
}

func NewServer(hub *Hub, store *Store, issuer *auth.Issuer, origins []string, devTokens bool) *Server {
	return &Server{
		hub:       hub,
		store:     store,
		issuer:    issuer,
		origins:   origins,
		devTokens: devTokens,
	}
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.Use(Recovery)
	r.Use(Logger)
	r.Use(CORS(s.origins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	if s.devTokens {
		r.HandleFunc("/auth/dev-token", auth.NewHandler(s.issuer).DevToken).Methods("POST", "OPTIONS")
	}

	rooms := r.PathPrefix("/rooms").Subrouter()
	rooms.Use(s.issuer.Middleware)
	rooms.HandleFunc("/{roomId}/board-elements", s.listElements).Methods("GET")

	r.HandleFunc("/ws", s.handleWebSocket)

	return r
}

func (s *Server) listElements(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	elems := s.store.List(roomID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Elements []board.Element `json:"elements"`
	}{Elements: elems}); err != nil {
		slog.Warn("write board elements", "error", err, "room", roomID)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	id, err := s.issuer.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.origins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(s.hub, conn, id.UserID, id.Name, uuid.New().String())
	s.hub.Register(client)
	client.Serve(r.Context())
}

// originPatterns reduces origins to the host patterns websocket.Accept
// matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

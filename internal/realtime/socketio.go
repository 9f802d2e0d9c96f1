package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

// SocketServer is the socket.io implementation of the transport: it owns
// room membership, keeps the session registry in sync with live
// connections, and implements Publisher.
type SocketServer struct {
	io       *socketio.Server
	sessions SessionRegistry
	auth     JoinAuthorizer
	log      *zap.Logger

	mu    sync.Mutex
	rooms map[socketio.SocketId]string // socket -> joined room
}

// JoinAuthorizer decides whether a connecting socket may join the room it
// claims. The enclosing auth layer supplies one that checks the resolved
// identity against the claimed role and id; a nil authorizer admits every
// claim.
type JoinAuthorizer func(socketID, role, id string) bool

// joinPayload is the client's room-join message.
type joinPayload struct {
	Role string
	ID   string
}

// NewSocketServer creates the socket.io server and wires connection
// lifecycle into the session registry.
func NewSocketServer(sessions SessionRegistry, auth JoinAuthorizer, log *zap.Logger) *SocketServer {
	opts := &socketio.ServerOptions{}
	opts.SetCors(&types.Cors{Origin: "*"})

	s := &SocketServer{
		io:       socketio.NewServer(nil, opts),
		sessions: sessions,
		auth:     auth,
		log:      log,
		rooms:    make(map[socketio.SocketId]string),
	}

	s.io.On("connection", func(clients ...any) {
		socket := clients[0].(*socketio.Socket)
		s.log.Info("client connected", zap.String("socket_id", string(socket.Id())))

		// join: the client declares its role and id and starts receiving
		// room-addressed events.
		socket.On("join", func(args ...any) {
			p, ok := parseJoin(args)
			if !ok {
				return
			}
			room, ok := s.authorizeJoin(string(socket.Id()), p)
			if !ok {
				s.log.Warn("join refused",
					zap.String("role", p.Role), zap.String("socket_id", string(socket.Id())))
				return
			}

			socket.Join(socketio.Room(room))
			s.mu.Lock()
			s.rooms[socket.Id()] = room
			s.mu.Unlock()

			if err := s.sessions.Register(context.Background(), room, string(socket.Id())); err != nil {
				s.log.Error("session register failed", zap.String("room", room), zap.Error(err))
			}
		})

		socket.On("disconnect", func(...any) {
			s.mu.Lock()
			room, ok := s.rooms[socket.Id()]
			delete(s.rooms, socket.Id())
			s.mu.Unlock()
			if !ok {
				return
			}
			if err := s.sessions.Deregister(context.Background(), room, string(socket.Id())); err != nil {
				s.log.Error("session deregister failed", zap.String("room", room), zap.Error(err))
			}
		})
	})

	return s
}

// Server exposes the underlying socket.io server.
func (s *SocketServer) Server() *socketio.Server {
	return s.io
}

// Handler returns the HTTP handler to mount at /socket.io/.
func (s *SocketServer) Handler() http.Handler {
	return s.io.ServeHandler(nil)
}

// Publish emits a named event into a room. Fire-and-forget: it does not
// wait for client delivery.
func (s *SocketServer) Publish(_ context.Context, room string, event EventName, payload any) error {
	return s.io.To(socketio.Room(room)).Emit(string(event), payload)
}

var _ Publisher = (*SocketServer)(nil)

// authorizeJoin resolves the claimed room and consults the authorizer.
func (s *SocketServer) authorizeJoin(socketID string, p joinPayload) (string, bool) {
	room, ok := roomFor(p)
	if !ok {
		return "", false
	}
	if s.auth != nil && !s.auth(socketID, p.Role, p.ID) {
		return "", false
	}
	return room, true
}

func parseJoin(args []any) (joinPayload, bool) {
	if len(args) == 0 {
		return joinPayload{}, false
	}
	data, ok := args[0].(map[string]any)
	if !ok {
		return joinPayload{}, false
	}
	role, _ := data["role"].(string)
	id, _ := data["id"].(string)
	if role == "" || id == "" {
		return joinPayload{}, false
	}
	return joinPayload{Role: role, ID: id}, true
}

func roomFor(p joinPayload) (string, bool) {
	switch p.Role {
	case "user":
		return UserRoom(p.ID), true
	case "driver":
		return DriverRoom(p.ID), true
	}
	return "", false
}

package realtime

import "context"

// Room addressing convention: each role joins its own room on connect and
// all server-to-client traffic is addressed to these rooms. The naming is
// part of the wire protocol shared with the mobile clients.
const (
	userRoomPrefix   = "user_"
	driverRoomPrefix = "driver_"
)

// UserRoom returns the room a requester listens on.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// DriverRoom returns the room a driver listens on.
func DriverRoom(driverID string) string {
	return driverRoomPrefix + driverID
}

// Publisher is the room-addressed publish side of the real-time transport.
// Delivery is fire-and-forget: publishing never blocks on client
// confirmation.
type Publisher interface {
	Publish(ctx context.Context, room string, event EventName, payload any) error
}

// SessionRegistry tracks which rooms have a live real-time session. The
// directory query treats it as authoritative: a driver marked online in the
// database but absent here is never offered a booking.
type SessionRegistry interface {
	Register(ctx context.Context, room, sessionID string) error
	Deregister(ctx context.Context, room, sessionID string) error
	IsConnected(ctx context.Context, room string) (bool, error)
}

package storage

import "context"

// Keys of the persisted entries. Each entry is a full JSON document
// that is rewritten as a whole on every mutation.
const (
	KeyTasks    = "todos"
	KeyTags     = "availableTags"
	KeyUsers    = "users"
	KeySessions = "sessions"
)

// Storage is a synchronous string-keyed medium. Get reports whether
// the key was present; a missing key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close()
}

// Package realtime fans task mutation events out to every live connection
// belonging to the owning user.
package realtime

import "sync"

// Handle is one live connection as seen by the registry. Send must not
// block: it reports false when the handle can no longer accept data.
type Handle interface {
	Send(data []byte) bool
	Close()
}

// Registry maps a user id to the set of currently connected handles for
// that user. Purely in-memory and process-local; a handle belongs to
// exactly one user for its lifetime.
type Registry struct {
	mu      sync.Mutex
	members map[int64]map[Handle]struct{}
	owners  map[Handle]int64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[int64]map[Handle]struct{}),
		owners:  make(map[Handle]int64),
	}
}

// Join adds a handle under userID. Idempotent per handle; a handle that is
// already registered keeps its original user.
func (r *Registry) Join(userID int64, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, joined := r.owners[h]; joined {
		return
	}
	set, ok := r.members[userID]
	if !ok {
		set = make(map[Handle]struct{})
		r.members[userID] = set
	}
	set[h] = struct{}{}
	r.owners[h] = userID
}

// Leave removes a handle. Safe to call for a handle that already left;
// unclean teardown may race an explicit leave.
func (r *Registry) Leave(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[h]
	if !ok {
		return
	}
	delete(r.owners, h)

	set := r.members[userID]
	delete(set, h)
	if len(set) == 0 {
		delete(r.members, userID)
	}
}

// MembersOf returns a snapshot of the handles connected for userID.
func (r *Registry) MembersOf(userID int64) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.members[userID]
	handles := make([]Handle, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	return handles
}

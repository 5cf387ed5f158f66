package store

import (
	"path/filepath"
	"sync"

	"github.com/screenlens/screenlens/pkg/runerr"
)

// Concurrent runs against the same store are rejected by a process-wide
// lease keyed by the store's resolved path.
var leases = struct {
	sync.Mutex
	held map[string]bool
}{held: map[string]bool{}}

func acquireLease(path string) (string, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	leases.Lock()
	defer leases.Unlock()
	if leases.held[key] {
		return "", runerr.Newf(runerr.CodeInput, "store %q is already in use by another run", path)
	}
	leases.held[key] = true
	return key, nil
}

func releaseLease(key string) {
	leases.Lock()
	defer leases.Unlock()
	delete(leases.held, key)
}

package scan

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// UnknownName is reported when a uid or gid has no account entry.
const UnknownName = "unknown"

// Record is the metadata of one regular file found by a walk.
// Built from a single lstat and never updated; it may be stale by the time
// a caller acts on it.
type Record struct {
	Path    string
	Name    string
	Size    int64
	Owner   string
	Group   string
	ModTime time.Time
}

// Age returns how long ago the file was last modified, relative to now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.ModTime)
}

// nameCache resolves uids and gids to account names.
// Lookups hit /etc/passwd or NSS, so each id is resolved once per walker.
type nameCache struct {
	mu     sync.Mutex
	users  map[uint32]string
	groups map[uint32]string

	lookupUser  func(uid string) (*user.User, error)
	lookupGroup func(gid string) (*user.Group, error)
}

func newNameCache() *nameCache {
	return &nameCache{
		users:       make(map[uint32]string),
		groups:      make(map[uint32]string),
		lookupUser:  user.LookupId,
		lookupGroup: user.LookupGroupId,
	}
}

func (c *nameCache) userName(uid uint32) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.users[uid]; ok {
		return name
	}
	name := UnknownName
	if u, err := c.lookupUser(strconv.FormatUint(uint64(uid), 10)); err == nil && u.Username != "" {
		name = u.Username
	}
	c.users[uid] = name
	return name
}

func (c *nameCache) groupName(gid uint32) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.groups[gid]; ok {
		return name
	}
	name := UnknownName
	if g, err := c.lookupGroup(strconv.FormatUint(uint64(gid), 10)); err == nil && g.Name != "" {
		name = g.Name
	}
	c.groups[gid] = name
	return name
}

// newRecord builds a Record from an lstat result
func (c *nameCache) newRecord(path string, info os.FileInfo) Record {
	rec := Record{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Owner:   UnknownName,
		Group:   UnknownName,
		ModTime: info.ModTime(),
	}
	if uid, gid, ok := ownerIDs(info); ok {
		rec.Owner = c.userName(uid)
		rec.Group = c.groupName(gid)
	}
	return rec
}

package geometry

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ID identifies a geometry object for its whole lifetime.
type ID = uuid.UUID

// NilID is the unset identity. Geometry carrying it is treated as absent.
var NilID = uuid.Nil

var idCounter atomic.Uint64

func init() {
	idCounter.Store(uint64(time.Now().UnixNano()))
}

// newID returns a UUIDv4-shaped identity derived from a process-wide counter,
// so two geometry objects in one process never share an ID.
func newID() ID {
	ctr := idCounter.Add(1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], ctr)
	binary.LittleEndian.PutUint64(b[8:16], ctr^now^(now<<17))
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}

package buffers

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
)

// Stats is a snapshot of registry state.
type Stats struct {
	Models     int   // resident models
	References int   // sum of reference counts
	GPUBytes   int64 // bytes last uploaded across resident models
	Created    int64 // models constructed over the registry's lifetime
	Evicted    int64 // models released over the registry's lifetime

	Kinds map[Kind]KindStats
}

// KindStats breaks Stats down by buffer kind.
type KindStats struct {
	Models     int
	References int
	GPUBytes   int64
	Dirty      int // models with at least one stream awaiting upload
}

func (s Stats) String() string {
	return fmt.Sprintf("%d models (%d refs, %s GPU), %d created, %d evicted",
		s.Models, s.References, units.BytesSize(float64(s.GPUBytes)), s.Created, s.Evicted)
}

// Stats returns a snapshot of the registry.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Models:  r.entries.Len(),
		Created: r.created,
		Evicted: r.evicted,
		Kinds:   make(map[Kind]KindStats),
	}
	for e := range r.entries.Values() {
		bytes := int64(e.model.SizeBytes())
		s.References += e.count
		s.GPUBytes += bytes

		ks := s.Kinds[e.key.Kind]
		ks.Models++
		ks.References += e.count
		ks.GPUBytes += bytes
		if e.model.Dirty() {
			ks.Dirty++
		}
		s.Kinds[e.key.Kind] = ks
	}
	return s
}

// PrintStats logs the registry state per kind, with a bar showing each kind's
// share of GPU bytes.
func (r *Registry) PrintStats() {
	stats := r.Stats()

	registryLogger.Println("===== Buffer Registry Stats =====")
	registryLogger.Print(stats.String())
	for _, kind := range kinds {
		ks, ok := stats.Kinds[kind]
		if !ok {
			continue
		}
		share := 0.0
		if stats.GPUBytes > 0 {
			share = float64(ks.GPUBytes) / float64(stats.GPUBytes)
		}
		sharing := 0.0
		if ks.Models > 0 {
			sharing = float64(ks.References) / float64(ks.Models)
		}
		registryLogger.Printf("  [%5s] %s %.0f%% of GPU (%s), %d models, %d refs (%.1f× sharing), %d dirty",
			kind, makeShareBar(share, 12), share*100, units.BytesSize(float64(ks.GPUBytes)),
			ks.Models, ks.References, sharing, ks.Dirty)
	}
	registryLogger.Println("=================================")
}

func makeShareBar(share float64, width int) string {
	share = min(max(share, 0), 1)
	filled := int(share * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

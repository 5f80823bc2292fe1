package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/sphfluid/particles"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is a debug dump of the persistent particle fields of one frame, in
// original particle order. It is written for offline inspection; runs never
// start from one.
type Snapshot struct {
	Version int     `json:"version"`
	Backend string  `json:"backend"`
	Frame   int     `json:"frame"`
	SimTime float64 `json:"sim_time"`

	Particles []ParticleState `json:"particles"`
}

// ParticleState holds one particle's persistent state.
type ParticleState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VelX float64 `json:"vel_x"`
	VelY float64 `json:"vel_y"`
	Mass float64 `json:"mass"`
}

// NewSnapshot captures st. Derived fields are not stored.
func NewSnapshot(st *particles.State, backend string, frame int, simTime float64) *Snapshot {
	snap := &Snapshot{
		Version:   SnapshotVersion,
		Backend:   backend,
		Frame:     frame,
		SimTime:   simTime,
		Particles: make([]ParticleState, st.Len()),
	}
	for i := range snap.Particles {
		snap.Particles[i] = ParticleState{
			X:    st.Position[i].X,
			Y:    st.Position[i].Y,
			VelX: st.Velocity[i].X,
			VelY: st.Velocity[i].Y,
			Mass: st.Mass[i],
		}
	}
	return snap
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Frame))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk for inspection.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

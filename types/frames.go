package types

// ProgressFrame is a single frame on the progress stream boundary (§6).
// Subscribers are guaranteed the terminal frame and at least one
// intermediate progress update, but coalescing may drop others.
type ProgressFrame struct {
	ContractVersion string     `msgpack:"contract_version" json:"contract_version"`
	JobID           string     `msgpack:"job_id" json:"job_id"`
	State           JobState   `msgpack:"state" json:"state"`
	Progress        int        `msgpack:"progress" json:"progress"`
	Result          *JobResult `msgpack:"result,omitempty" json:"result,omitempty"`
	Error           *JobError  `msgpack:"error,omitempty" json:"error,omitempty"`
	Heartbeat       bool       `msgpack:"heartbeat,omitempty" json:"heartbeat,omitempty"`
}

// Terminal reports whether this frame represents the job's final state.
func (f ProgressFrame) Terminal() bool {
	return f.State == JobCompleted || f.State == JobFailed
}

// CombatFrameType discriminates frames on the combat stream boundary (§6).
type CombatFrameType string

const (
	CombatFrameJoined    CombatFrameType = "joined"
	CombatFrameState     CombatFrameType = "state"
	CombatFrameCompleted CombatFrameType = "completed"
	CombatFrameLeft      CombatFrameType = "left"
)

// CombatFrame is a single frame on the combat stream boundary.
type CombatFrame struct {
	ContractVersion string       `msgpack:"contract_version" json:"contract_version"`
	Type            CombatFrameType `msgpack:"type" json:"type"`
	MatchID         string       `msgpack:"match_id" json:"match_id"`
	Snapshot        *CombatState `msgpack:"snapshot,omitempty" json:"snapshot,omitempty"`
	Result          *MatchResult `msgpack:"result,omitempty" json:"result,omitempty"`
}

package model

// CompiledDocument is a policy document after compilation against a
// configuration. Its voter shape decides which evaluation tier it lands in:
// a constant Vote folds into the configuration at compile time, a PureVoter
// evaluates per request, a StreamVoter subscribes to attribute updates.
type CompiledDocument interface {
	Metadata() VoterMetadata
	Voter() Voter
}

// ConstantDocument is the trivial CompiledDocument around a settled vote.
type ConstantDocument struct {
	Meta VoterMetadata
	Vote Vote
}

func (d ConstantDocument) Metadata() VoterMetadata { return d.Meta }
func (d ConstantDocument) Voter() Voter            { return d.Vote }

// PureDocument wraps a synchronous evaluation function.
type PureDocument struct {
	Meta     VoterMetadata
	Evaluate PureVoter
}

func (d PureDocument) Metadata() VoterMetadata { return d.Meta }
func (d PureDocument) Voter() Voter            { return d.Evaluate }

// StreamDocument wraps an attribute-driven vote stream.
type StreamDocument struct {
	Meta      VoterMetadata
	Subscribe StreamVoter
}

func (d StreamDocument) Metadata() VoterMetadata { return d.Meta }
func (d StreamDocument) Voter() Voter            { return d.Subscribe }

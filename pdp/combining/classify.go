package combining

import "github.com/dev-sgill/arbiter/api/pdp/model"

// Stratified is the result of partitioning a configuration's documents by
// voter shape. Relative order is preserved within each tier. Constant
// abstentions are dropped entirely: they can never influence any combining
// algorithm that ignores document order.
type Stratified struct {
	ConstantVotes []model.Vote
	PureDocs      []model.CompiledDocument
	StreamDocs    []model.CompiledDocument
}

// Classify partitions documents into evaluation tiers. Classifying the
// output of a previous classification is a no-op.
func Classify(docs []model.CompiledDocument) Stratified {
	var st Stratified
	for _, d := range docs {
		switch v := d.Voter().(type) {
		case model.Vote:
			if v.Decision() == model.NotApplicable && !v.HasErrors() {
				continue
			}
			st.ConstantVotes = append(st.ConstantVotes, v)
		case model.PureVoter:
			st.PureDocs = append(st.PureDocs, d)
		case model.StreamVoter:
			st.StreamDocs = append(st.StreamDocs, d)
		}
	}
	return st
}

// CombinedMetadata derives the configuration-level voter metadata from the
// metadata of its documents.
func CombinedMetadata(name, pdpID, configurationID string, docs []model.CompiledDocument) model.VoterMetadata {
	outcome := model.OutcomeUnknown
	hasConstraints := false
	for _, d := range docs {
		m := d.Metadata()
		outcome = model.MergeOutcomes(outcome, m.Outcome)
		hasConstraints = hasConstraints || m.HasConstraints
	}
	return model.VoterMetadata{
		Name:            name,
		PDPID:           pdpID,
		ConfigurationID: configurationID,
		Outcome:         outcome,
		HasConstraints:  hasConstraints,
	}
}

package combining

import (
	"github.com/dev-sgill/arbiter/api/pdp/model"
)

var combinedMeta = model.VoterMetadata{
	Name:            "combined",
	PDPID:           "pdp-test",
	ConfigurationID: "config-test",
}

func docMeta(name string, outcome model.Outcome) model.VoterMetadata {
	return model.VoterMetadata{
		Name:            name,
		PDPID:           "pdp-test",
		ConfigurationID: "config-test",
		Outcome:         outcome,
	}
}

func permitVote(name string) model.Vote {
	return model.NewVote(model.Permit, nil, nil, nil, docMeta(name, model.OutcomePermit), nil)
}

func denyVote(name string) model.Vote {
	return model.NewVote(model.Deny, nil, nil, nil, docMeta(name, model.OutcomeDeny), nil)
}

func abstainVote(name string, outcome model.Outcome) model.Vote {
	return model.Abstain(docMeta(name, outcome))
}

func errorVote(name string, outcome model.Outcome) model.Vote {
	return model.NewErrorVote(model.NewError("boom"), docMeta(name, outcome))
}

func permitWith(name string, obligations []model.Value, resource model.Value) model.Vote {
	return model.NewVote(model.Permit, obligations, nil, resource, docMeta(name, model.OutcomePermit), nil)
}

func denyWith(name string, obligations []model.Value, resource model.Value) model.Vote {
	return model.NewVote(model.Deny, obligations, nil, resource, docMeta(name, model.OutcomeDeny), nil)
}

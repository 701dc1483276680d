package combining

import (
	"context"

	"github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/pdp/stream"
)

// CompileCoverage builds the audit-path evaluator for a configuration.
// Unlike the decision path it never short-circuits evaluation: every
// document votes on every request, in document order, so the coverage list
// is complete even when the combined result would have settled early. The
// combined vote itself is folded and finalized with the normal algorithm
// semantics.
func CompileCoverage(p Parameters, docs []model.CompiledDocument, meta model.VoterMetadata) (model.CoverageEvaluator, error) {
	c, err := combinerFor(p)
	if err != nil {
		return nil, err
	}

	hasStream := false
	for _, d := range docs {
		if _, ok := d.Voter().(model.StreamVoter); ok {
			hasStream = true
			break
		}
	}

	if !hasStream {
		return model.PureCoverageEvaluator(func(ectx *model.EvaluationContext) model.VoteWithCoverage {
			votes := make([]model.Vote, 0, len(docs))
			for _, d := range docs {
				votes = append(votes, evalOrdered(d, ectx))
			}
			return model.VoteWithCoverage{
				Vote:     Finalize(FoldVotes(c, votes, meta), p),
				Coverage: votes,
			}
		}), nil
	}

	if p.Algorithm == AlgorithmFirst {
		return model.StreamCoverageEvaluator(func(ectx *model.EvaluationContext) model.CoverageStream {
			return firstCoverageChain(c, p, docs, ectx, meta)
		}), nil
	}

	return model.StreamCoverageEvaluator(func(ectx *model.EvaluationContext) model.CoverageStream {
		streams := make([]model.VoteStream, len(docs))
		for i, d := range docs {
			switch v := d.Voter().(type) {
			case model.Vote:
				streams[i] = stream.Just(v)
			case model.PureVoter:
				streams[i] = stream.Just(v(ectx))
			case model.StreamVoter:
				streams[i] = v(ectx)
			}
		}
		return model.CoverageStream(stream.CombineLatest(streams, func(votes []model.Vote) model.VoteWithCoverage {
			return model.VoteWithCoverage{
				Vote:     Finalize(FoldVotes(c, votes, meta), p),
				Coverage: votes,
			}
		}))
	}), nil
}

// firstCoverageChain visits the documents strictly in order, like the
// decision-path chain, but never settles early: every document contributes
// a coverage vote. Each streaming document's tail is subscribed only after
// the document itself has voted, and is torn down and rebuilt when it
// re-votes.
func firstCoverageChain(c Combiner, p Parameters, docs []model.CompiledDocument, ectx *model.EvaluationContext, meta model.VoterMetadata) model.CoverageStream {
	settle := func(votes []model.Vote) model.CoverageStream {
		return func(ctx context.Context) <-chan model.VoteWithCoverage {
			out := make(chan model.VoteWithCoverage, 1)
			out <- model.VoteWithCoverage{
				Vote:     Finalize(FoldVotes(c, votes, meta), p),
				Coverage: votes,
			}
			close(out)
			return out
		}
	}

	var chain func(i int, prefix []model.Vote) model.CoverageStream
	chain = func(i int, prefix []model.Vote) model.CoverageStream {
		if i == len(docs) {
			return settle(prefix)
		}
		switch v := docs[i].Voter().(type) {
		case model.Vote:
			return chain(i+1, appendVote(prefix, v))
		case model.PureVoter:
			return chain(i+1, appendVote(prefix, v(ectx)))
		case model.StreamVoter:
			return model.CoverageStream(stream.SwitchTo(v(ectx), func(vote model.Vote) func(context.Context) <-chan model.VoteWithCoverage {
				return chain(i+1, appendVote(prefix, vote))
			}))
		default:
			return chain(i+1, appendVote(prefix, model.NewErrorVote(model.NewError("unsupported voter shape"), docs[i].Metadata())))
		}
	}
	return chain(0, nil)
}

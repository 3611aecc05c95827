package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/domain"
)

// VoteResult lists the ballots stored.
type VoteResult struct {
	Success bool     `json:"success"`
	VoteIDs []string `json:"voteIds"`
}

// ElectionVote stores a voter's ballots. Every ballot is checked, and every
// voter must be allowed to vote, before any ballot is written.
func ElectionVote(ctx context.Context, d *Deps, req Request) (any, error) {
	var r struct {
		Votes []domain.Vote `json:"votes"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if len(r.Votes) == 0 {
		return nil, apperr.Validation("no votes provided")
	}
	for i, v := range r.Votes {
		n := strconv.Itoa(i)
		if err := missing(
			required("votes["+n+"].optionId", v.OptionID != ""),
			required("votes["+n+"].voterId", v.VoterID != ""),
			required("votes["+n+"].electionId", v.ElectionID != ""),
			required("votes["+n+"].votingSessionId", v.VotingSessionID != ""),
			required("votes["+n+"].votingItemId", v.VotingItemID != ""),
		); err != nil {
			return nil, err
		}
		if v.Weight <= 0 {
			return nil, apperr.Validation("votes[%d].weight must be positive", i)
		}
	}

	voters := map[string]domain.Voter{}
	for _, v := range r.Votes {
		if _, seen := voters[v.VoterID]; seen {
			continue
		}
		var voter domain.Voter
		if err := d.Store.GetDocument(ctx, domain.DatabaseApp, domain.CollectionVoters, v.VoterID, &voter); err != nil {
			return nil, fmt.Errorf("get voter %s: %w", v.VoterID, err)
		}
		if !voter.CanVote {
			return nil, apperr.Validation("voter %s may not vote", v.VoterID)
		}
		voters[v.VoterID] = voter
	}

	ids := make([]string, 0, len(r.Votes))
	for _, v := range r.Votes {
		v.Voter = voters[v.VoterID].ID
		id := d.newID()
		err := d.Store.CreateDocument(ctx, domain.DatabaseApp, domain.CollectionVotes, id, v,
			docstore.Read(docstore.User(v.VoterID)),
			docstore.Read(docstore.Team(v.ElectionID, "owner")),
			docstore.Delete(docstore.Team(v.ElectionID, "owner")),
		)
		if err != nil {
			return nil, fmt.Errorf("cast vote for item %s: %w", v.VotingItemID, err)
		}
		ids = append(ids, id)
	}
	d.Log.InfoContext(ctx, "votes cast", "count", len(ids))
	return VoteResult{Success: true, VoteIDs: ids}, nil
}

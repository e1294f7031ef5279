package proposal

import (
	"context"
	"testing"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonusfinder-backend/internal/domain"
	proposaldomain "github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

func TestProposalVoteRepoUpsertAndTally(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewProposalVoteRepo(gdb, testutil.Logger(t))

	author := testutil.SeedUser(t, ctx, tx, "author", "contributor")
	alice := testutil.SeedUser(t, ctx, tx, "alice", "contributor")
	admin := testutil.SeedUser(t, ctx, tx, "root", "admin")
	p := testutil.SeedProposal(t, ctx, tx, &types.Proposal{
		ProposalType: proposaldomain.TypeRateChange,
		UserID:       author.ID,
	})

	if err := repo.Upsert(dbc, &types.ProposalVote{ProposalID: p.ID, VoterID: alice.ID, Vote: 1, VoteWeight: 1}); err != nil {
		t.Fatalf("Upsert alice: %v", err)
	}
	if err := repo.Upsert(dbc, &types.ProposalVote{ProposalID: p.ID, VoterID: admin.ID, Vote: -1, VoteWeight: 3}); err != nil {
		t.Fatalf("Upsert admin: %v", err)
	}
	sum, err := repo.SumPositiveWeight(dbc, p.ID)
	if err != nil || sum != 1 {
		t.Fatalf("SumPositiveWeight: sum=%d err=%v", sum, err)
	}

	// A re-vote replaces the earlier vote rather than adding a row.
	if err := repo.Upsert(dbc, &types.ProposalVote{ProposalID: p.ID, VoterID: admin.ID, Vote: 1, VoteWeight: 3}); err != nil {
		t.Fatalf("Upsert admin again: %v", err)
	}
	sum, err = repo.SumPositiveWeight(dbc, p.ID)
	if err != nil || sum != 4 {
		t.Fatalf("SumPositiveWeight after re-vote: sum=%d err=%v", sum, err)
	}
	votes, err := repo.ListByProposal(dbc, p.ID)
	if err != nil || len(votes) != 2 {
		t.Fatalf("ListByProposal: len=%d err=%v", len(votes), err)
	}
}

func TestProposalRepoFindPendingRateChange(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewProposalRepo(gdb, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "bob", "user")
	shop := testutil.SeedLegacyShop(t, ctx, tx, "Shop", nil)
	prog := testutil.SeedProgram(t, ctx, tx, "Payback", 0.01)
	p := testutil.SeedProposal(t, ctx, tx, &types.Proposal{
		ProposalType: proposaldomain.TypeRateChange,
		UserID:       u.ID,
		ShopID:       &shop.ID,
		ProgramID:    &prog.ID,
	})

	got, err := repo.FindPendingRateChange(dbc, u.ID, shop.ID, prog.ID)
	if err != nil {
		t.Fatalf("FindPendingRateChange: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("FindPendingRateChange: expected %v got %v", p.ID, got)
	}

	if err := repo.UpdateFields(dbc, p.ID, map[string]interface{}{"status": proposaldomain.StatusRejected}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.FindPendingRateChange(dbc, u.ID, shop.ID, prog.ID)
	if err != nil || got != nil {
		t.Fatalf("FindPendingRateChange after reject: got=%v err=%v", got, err)
	}

	list, err := repo.List(dbc, ListFilter{Status: proposaldomain.StatusRejected})
	if err != nil || len(list) != 1 {
		t.Fatalf("List: len=%d err=%v", len(list), err)
	}
}

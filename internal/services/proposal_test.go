package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bonusfinder-backend/internal/data/repos"
	programdomain "github.com/yungbote/bonusfinder-backend/internal/domain/program"
	proposaldomain "github.com/yungbote/bonusfinder-backend/internal/domain/proposal"
	shopdomain "github.com/yungbote/bonusfinder-backend/internal/domain/shop"
	apperr "github.com/yungbote/bonusfinder-backend/internal/pkg/errors"
	"github.com/yungbote/bonusfinder-backend/internal/pkg/pointers"
)

func TestQuorumAutoApprovesRateChange(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "DemoShop", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1)},
	}})
	payback, err := f.programs.GetByName(f.dbc(), "Payback")
	require.NoError(t, err)

	submitter := f.user("submitter", "user")
	p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
		ProposalType: proposaldomain.TypeRateChange,
		ShopID:       &shop.CanonicalID,
		ProgramID:    &payback.ID,
		PointsPerEUR: pointers.Float64(3),
	})
	require.NoError(t, err)
	require.Equal(t, shop.LegacyShopID, *p.ShopID)

	for i, name := range []string{"c1", "c2", "c3"} {
		voter := f.user(name, "contributor")
		res, err := f.proposal.Vote(f.dbc(), p.ID, voter.ID, 1)
		require.NoError(t, err)
		require.Equal(t, i+1, res.Tally)
		require.Equal(t, i == 2, res.AutoApproved)
	}

	got, err := f.proposal.Get(f.dbc(), p.ID)
	require.NoError(t, err)
	require.Equal(t, proposaldomain.StatusApproved, got.Status)
	require.True(t, got.ApprovedBySystem)
	require.NotNil(t, got.ApprovedAt)

	open := f.openRates(shop.LegacyShopID)
	require.Len(t, open, 1)
	require.Equal(t, 3.0, *open[0].PointsPerEUR)
	history, err := f.rates.History(f.dbc(), shop.LegacyShopID, payback.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	admin := f.user("admin", "admin")
	_, err = f.proposal.Vote(f.dbc(), p.ID, admin.ID, 1)
	require.True(t, errors.Is(err, ErrProposalNotPending))
	require.Len(t, f.openRates(shop.LegacyShopID), 1)

	trail, err := f.proposal.AuditTrail(f.dbc(), p.ID)
	require.NoError(t, err)
	require.Len(t, trail, 5) // created, three votes, approved
	require.Len(t, f.events.OfType("proposal.approved"), 1)
}

func TestAdminVoteReachesQuorumAlone(t *testing.T) {
	f := newFixture(t)
	submitter := f.user("submitter", "user")
	p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
		ProposalType:  proposaldomain.TypeProgramAdd,
		Name:          pointers.String("DeutschlandCard"),
		PointValueEUR: pointers.Float64(0.01),
	})
	require.NoError(t, err)

	admin := f.user("admin", "admin")
	res, err := f.proposal.Vote(f.dbc(), p.ID, admin.ID, 1)
	require.NoError(t, err)
	require.True(t, res.AutoApproved)
	require.Equal(t, 3, res.Tally)

	prog, err := f.programs.GetByName(f.dbc(), "DeutschlandCard")
	require.NoError(t, err)
	require.NotNil(t, prog)
	require.Equal(t, 0.01, prog.PointValueEUR)
}

func TestVoteRules(t *testing.T) {
	f := newFixture(t)
	submitter := f.user("submitter", "user")
	p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
		ProposalType: proposaldomain.TypeShopAdd,
		Name:         pointers.String("Neuer Laden"),
	})
	require.NoError(t, err)

	_, err = f.proposal.Vote(f.dbc(), p.ID, submitter.ID, 1)
	require.True(t, errors.Is(err, ErrCannotVote), "submitter may not vote")

	viewer := f.user("viewer", "viewer")
	_, err = f.proposal.Vote(f.dbc(), p.ID, viewer.ID, 1)
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	voter := f.user("voter", "contributor")
	_, err = f.proposal.Vote(f.dbc(), p.ID, voter.ID, 0)
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	// Re-voting overwrites instead of adding weight.
	for _, v := range []int{1, 1, -1} {
		_, err = f.proposal.Vote(f.dbc(), p.ID, voter.ID, v)
		require.NoError(t, err)
	}
	tally, err := f.votes.SumPositiveWeight(f.dbc(), p.ID)
	require.NoError(t, err)
	require.Zero(t, tally)
}

func TestDuplicatePendingRateChangeConflicts(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "DemoShop", Source: "Payback"})
	prog, err := f.registry.EnsureProgram(f.dbc(), "Payback", nil)
	require.NoError(t, err)
	u := f.user("u", "user")
	in := ProposalInput{
		ProposalType: proposaldomain.TypeRateChange,
		ShopID:       &shop.LegacyShopID,
		ProgramID:    &prog.ID,
		CashbackPct:  pointers.Float64(2),
	}
	_, err = f.proposal.Create(f.dbc(), u.ID, in)
	require.NoError(t, err)
	_, err = f.proposal.Create(f.dbc(), u.ID, in)
	require.True(t, errors.Is(err, ErrDuplicateProposal))
	require.True(t, errors.Is(err, apperr.ErrConflict))

	other := f.user("other", "user")
	_, err = f.proposal.Create(f.dbc(), other.ID, in)
	require.NoError(t, err)
}

func TestCreateValidatesByType(t *testing.T) {
	f := newFixture(t)
	u := f.user("u", "user")
	cases := []ProposalInput{
		{ProposalType: "bogus"},
		{ProposalType: proposaldomain.TypeRateChange},
		{ProposalType: proposaldomain.TypeShopAdd},
		{ProposalType: proposaldomain.TypeCouponAdd, CouponType: pointers.String("multiplier")},
		{ProposalType: proposaldomain.TypeMergeRequest},
		{ProposalType: proposaldomain.TypeMetadataEdit},
		{ProposalType: proposaldomain.TypeURL},
	}
	for _, in := range cases {
		_, err := f.proposal.Create(f.dbc(), u.ID, in)
		require.Truef(t, errors.Is(err, apperr.ErrInvalidArgument), "%s: got %v", in.ProposalType, err)
	}
}

func TestApproveAndRejectRequireAdmin(t *testing.T) {
	f := newFixture(t)
	u := f.user("u", "user")
	admin := f.user("admin", "admin")
	p, err := f.proposal.Create(f.dbc(), u.ID, ProposalInput{
		ProposalType:  proposaldomain.TypeCouponAdd,
		CouponType:    pointers.String("discount"),
		CouponValue:   pointers.Float64(5),
		CouponName:    pointers.String("5% extra"),
		CouponValidTo: pointers.Time(time.Now().UTC().Add(48 * time.Hour)),
	})
	require.NoError(t, err)

	_, err = f.proposal.Approve(f.dbc(), p.ID, u.ID)
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = f.proposal.Reject(f.dbc(), p.ID, admin.ID, "  ")
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	approved, err := f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)
	require.False(t, approved.ApprovedBySystem)
	require.Equal(t, admin.ID, *approved.ApprovedByUserID)

	active, err := f.coupons.ListActiveFor(f.dbc(), nil, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "5% extra", active[0].Name)

	_, err = f.proposal.Reject(f.dbc(), p.ID, admin.ID, "late")
	require.True(t, errors.Is(err, ErrProposalNotPending))
}

func TestRejectKeepsReason(t *testing.T) {
	f := newFixture(t)
	u := f.user("u", "user")
	admin := f.user("admin", "admin")
	p, err := f.proposal.Create(f.dbc(), u.ID, ProposalInput{ProposalType: proposaldomain.TypeShopAdd, Name: pointers.String("Spam")})
	require.NoError(t, err)

	rejected, err := f.proposal.Reject(f.dbc(), p.ID, admin.ID, "duplicate")
	require.NoError(t, err)
	require.Equal(t, proposaldomain.StatusRejected, rejected.Status)
	require.Nil(t, rejected.ApprovedAt)

	pending, err := f.proposal.ListPending(f.dbc(), repos.ProposalListFilter{})
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMergeRequestApproval(t *testing.T) {
	f := newFixture(t)
	a := f.ingest(ShopData{Name: "Galeria", Source: "Payback", SourceID: pointers.String("g-1")})
	b := f.ingest(ShopData{Name: "Karstadt", Source: "Payback", SourceID: pointers.String("k-1")})
	u := f.user("u", "user")
	admin := f.user("admin", "admin")

	_, err := f.proposal.Create(f.dbc(), u.ID, ProposalInput{
		ProposalType:  proposaldomain.TypeMergeRequest,
		MergeSourceID: &a.CanonicalID,
		MergeTargetID: &a.CanonicalID,
	})
	require.True(t, errors.Is(err, ErrSelfMerge))

	p, err := f.proposal.Create(f.dbc(), u.ID, ProposalInput{
		ProposalType:  proposaldomain.TypeMergeRequest,
		MergeSourceID: &b.CanonicalID,
		MergeTargetID: &a.CanonicalID,
	})
	require.NoError(t, err)
	_, err = f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)

	merged, err := f.shops.GetByID(f.dbc(), b.CanonicalID)
	require.NoError(t, err)
	require.Equal(t, shopdomain.StatusMerged, merged.Status)
	require.Len(t, f.events.OfType("shop.merged"), 1)
}

func TestURLProposalLifecycle(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "Otto", Source: "Payback"})
	u := f.user("u", "user")
	admin := f.user("admin", "admin")

	_, _, err := f.proposal.CreateURLProposal(f.dbc(), u.ID, shop.CanonicalID, "not a url")
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	p, created, err := f.proposal.CreateURLProposal(f.dbc(), u.ID, shop.CanonicalID, "https://www.otto.de")
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := f.proposal.CreateURLProposal(f.dbc(), u.ID, shop.CanonicalID, "https://www.otto.de")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, p.ID, again.ID)

	_, err = f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)
	listings, err := f.query.ListShops(f.dbc())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	require.Equal(t, []string{"https://www.otto.de"}, listings[0].AlternateURLs)

	// An approved url still deduplicates.
	_, created, err = f.proposal.CreateURLProposal(f.dbc(), u.ID, shop.CanonicalID, "https://www.otto.de")
	require.NoError(t, err)
	require.False(t, created)
}

func TestMetadataEditRenamesShop(t *testing.T) {
	f := newFixture(t)
	otto := f.ingest(ShopData{Name: "Otto", Source: "Payback"})
	lidl := f.ingest(ShopData{Name: "Lidl", Source: "Payback"})
	u := f.user("u", "user")
	admin := f.user("admin", "admin")

	p, err := f.proposal.Create(f.dbc(), u.ID, ProposalInput{
		ProposalType: proposaldomain.TypeMetadataEdit,
		ShopMainID:   &otto.CanonicalID,
		Name:         pointers.String("Otto Versand"),
		Website:      pointers.String("https://www.otto.de"),
	})
	require.NoError(t, err)
	_, err = f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)

	row, err := f.shops.GetByID(f.dbc(), otto.CanonicalID)
	require.NoError(t, err)
	require.Equal(t, "Otto Versand", row.CanonicalName)
	require.Equal(t, "otto versand", row.CanonicalNameLower)
	require.Equal(t, "https://www.otto.de", pointers.Deref(row.Website))

	// Taking another active shop's name is a conflict and leaves it pending.
	clash, err := f.proposal.Create(f.dbc(), u.ID, ProposalInput{
		ProposalType: proposaldomain.TypeMetadataEdit,
		ShopMainID:   &lidl.CanonicalID,
		Name:         pointers.String("otto versand"),
	})
	require.NoError(t, err)
	_, err = f.proposal.Approve(f.dbc(), clash.ID, admin.ID)
	require.True(t, errors.Is(err, apperr.ErrConflict))
	still, err := f.proposal.Get(f.dbc(), clash.ID)
	require.NoError(t, err)
	require.Equal(t, proposaldomain.StatusPending, still.Status)
}

func TestProgramAddNormalizesPointValue(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		mode    string
		want    float64
		wantErr bool
	}{
		{name: "euros per point", value: 0.01, mode: PointValueEURPerPoint, want: 0.01},
		{name: "default mode", value: 0.02, want: 0.02},
		{name: "points per euro", value: 200, mode: PointValuePointsPerEUR, want: 0.005},
		{name: "zero", value: 0, mode: PointValuePointsPerEUR, wantErr: true},
		{name: "negative", value: -1, wantErr: true},
		{name: "unknown mode", value: 1, mode: "cents", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			submitter := f.user("submitter", "user")
			p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
				ProposalType:   proposaldomain.TypeProgramAdd,
				Name:           pointers.String("Programm " + tc.name),
				PointValueEUR:  pointers.Float64(tc.value),
				PointValueMode: tc.mode,
			})
			if tc.wantErr {
				require.True(t, errors.Is(err, apperr.ErrInvalidArgument), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tc.want, *p.ProposedPointValueEUR, 1e-12)

			admin := f.user("admin", "admin")
			_, err = f.proposal.Approve(f.dbc(), p.ID, admin.ID)
			require.NoError(t, err)
			prog, err := f.programs.GetByName(f.dbc(), "Programm "+tc.name)
			require.NoError(t, err)
			require.InDelta(t, tc.want, prog.PointValueEUR, 1e-12)
		})
	}
}

func TestCouponAddApprovalDefaults(t *testing.T) {
	f := newFixture(t)
	submitter := f.user("submitter", "user")
	admin := f.user("admin", "admin")

	p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
		ProposalType: proposaldomain.TypeCouponAdd,
		CouponType:   pointers.String("multiplier"),
		CouponValue:  pointers.Float64(10),
		CouponName:   pointers.String("10fach Punkte"),
	})
	require.NoError(t, err)
	approvedAt := time.Now().UTC()
	_, err = f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)

	coupons, err := f.coupons.ListActiveFor(f.dbc(), nil, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	c := coupons[0]
	require.Equal(t, "10fach Punkte", c.Name)
	require.WithinDuration(t, approvedAt.Add(30*24*time.Hour), c.ValidTo, time.Minute)
	require.NotNil(t, c.Combinable)
	require.False(t, *c.Combinable)
}

func TestContractRateChangeKeepsRateType(t *testing.T) {
	f := newFixture(t)
	shop := f.ingest(ShopData{Name: "Telekom", Source: "Payback", Rates: []RateEntry{
		{Program: "Payback", PointsPerEUR: pointers.Float64(1)},
	}})
	payback, err := f.programs.GetByName(f.dbc(), "Payback")
	require.NoError(t, err)

	submitter := f.user("submitter", "user")
	p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
		ProposalType:   proposaldomain.TypeRateChange,
		ShopID:         &shop.CanonicalID,
		ProgramID:      &payback.ID,
		PointsAbsolute: pointers.Float64(5000),
		RateType:       pointers.String(programdomain.RateTypeContract),
	})
	require.NoError(t, err)
	admin := f.user("admin", "admin")
	_, err = f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)

	open := f.openRates(shop.LegacyShopID)
	require.Len(t, open, 1)
	require.Equal(t, programdomain.RateTypeContract, open[0].RateType)
	require.Equal(t, 5000.0, *open[0].PointsAbsolute)
	require.Nil(t, open[0].PointsPerEUR)
}

func TestVoteAfterApprovalChangesNothing(t *testing.T) {
	f := newFixture(t)
	submitter := f.user("submitter", "user")
	p, err := f.proposal.Create(f.dbc(), submitter.ID, ProposalInput{
		ProposalType: proposaldomain.TypeShopAdd,
		Name:         pointers.String("Spaeter Laden"),
	})
	require.NoError(t, err)
	admin := f.user("admin", "admin")
	approved, err := f.proposal.Approve(f.dbc(), p.ID, admin.ID)
	require.NoError(t, err)
	trail, err := f.proposal.AuditTrail(f.dbc(), p.ID)
	require.NoError(t, err)

	for _, v := range []int{1, -1} {
		voter := f.user(fmt.Sprintf("late%d", v+1), "contributor")
		_, err = f.proposal.Vote(f.dbc(), p.ID, voter.ID, v)
		require.True(t, errors.Is(err, ErrProposalNotPending), "vote %d: %v", v, err)
	}

	got, err := f.proposal.Get(f.dbc(), p.ID)
	require.NoError(t, err)
	require.Equal(t, proposaldomain.StatusApproved, got.Status)
	require.False(t, got.ApprovedBySystem)
	require.NotNil(t, got.ApprovedAt)
	require.WithinDuration(t, *approved.ApprovedAt, *got.ApprovedAt, time.Second)

	votes, err := f.votes.ListByProposal(f.dbc(), p.ID)
	require.NoError(t, err)
	require.Empty(t, votes)
	after, err := f.proposal.AuditTrail(f.dbc(), p.ID)
	require.NoError(t, err)
	require.Len(t, after, len(trail))
}

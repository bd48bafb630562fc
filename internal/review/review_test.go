package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
)

type memBidStore struct {
	bid models.Bid
	// conflictsLeft forces revision conflicts on the next N updates.
	conflictsLeft int
	updates       int
}

func (m *memBidStore) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	return m.bid, nil
}

func (m *memBidStore) UpdateBid(ctx context.Context, b models.Bid) error {
	m.updates++
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		m.bid.Revision++
		return util.ErrRevisionConflict
	}
	if b.Revision != m.bid.Revision {
		return util.ErrRevisionConflict
	}
	b.Revision++
	m.bid = b
	return nil
}

type memNotifications struct {
	created []models.Notification
}

func (m *memNotifications) Create(ctx context.Context, n models.Notification) error {
	m.created = append(m.created, n)
	return nil
}

type failingNotifications struct{}

func (failingNotifications) Create(ctx context.Context, n models.Notification) error {
	return errors.New("insert failed")
}

type memArchives struct {
	created []models.Archive
}

func (m *memArchives) Create(ctx context.Context, a models.Archive) error {
	m.created = append(m.created, a)
	return nil
}

func fiveSectionBid() models.Bid {
	sections := make([]models.Section, 5)
	for i := range sections {
		sections[i] = models.Section{Question: "Q", Status: models.SectionStatusEmpty}
	}
	return models.Bid{
		BidID:    "bid-1",
		OwnerID:  "owner-1",
		OrgID:    "org-1",
		BidName:  "Council Framework",
		Status:   models.BidStatusScoping,
		Sections: sections,
	}
}

func newTestService(bid models.Bid) (*Service, *memBidStore, *memNotifications, *memArchives) {
	bids := &memBidStore{bid: bid}
	notes := &memNotifications{}
	archives := &memArchives{}
	return NewService(bids, notes, archives), bids, notes, archives
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(nil))
	assert.Equal(t, 0, Progress([]models.Section{{}, {}}))
	assert.Equal(t, 50, Progress([]models.Section{{DraftAnswer: "x"}, {}}))
	assert.Equal(t, 33, Progress([]models.Section{{AIResponse: "x"}, {}, {}}))
	assert.Equal(t, 100, Progress([]models.Section{{DraftAnswer: "a"}, {AIResponse: "b"}}))
	// Whitespace is not an answer.
	assert.Equal(t, 0, Progress([]models.Section{{DraftAnswer: "   "}}))
}

func TestSaveDraftMovesScopingToDrafting(t *testing.T) {
	svc, bids, _, _ := newTestService(fiveSectionBid())

	b, err := svc.SaveDraft(context.Background(), "bid-1", 0, "We deliver weekly.")
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusDrafting, b.Status)
	assert.Equal(t, 20, b.Progress)
	assert.Equal(t, models.SectionStatusCompleted, b.Sections[0].Status)
	assert.Equal(t, bids.bid.Status, b.Status)
}

func TestSaveDraftClearsFlag(t *testing.T) {
	bid := fiveSectionBid()
	bid.Sections[1].Status = models.SectionStatusFlagged
	bid.Sections[1].ManagerNotes = "too vague"
	svc, _, _, _ := newTestService(bid)

	b, err := svc.SaveDraft(context.Background(), "bid-1", 1, "Specific rework.")
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusCompleted, b.Sections[1].Status)
	assert.Empty(t, b.Sections[1].ManagerNotes)
}

func TestSaveDraftBlankResetsToEmpty(t *testing.T) {
	bid := fiveSectionBid()
	bid.Sections[0].DraftAnswer = "old"
	bid.Sections[0].Status = models.SectionStatusCompleted
	svc, _, _, _ := newTestService(bid)

	b, err := svc.SaveDraft(context.Background(), "bid-1", 0, "")
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusEmpty, b.Sections[0].Status)
	assert.Equal(t, 0, b.Progress)
}

func TestApplyAIDraftClearsFlagNotes(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusDrafting
	bid.Sections[1].Status = models.SectionStatusFlagged
	bid.Sections[1].ManagerNotes = "too vague"
	svc, _, _, _ := newTestService(bid)

	b, err := svc.ApplyAIDraft(context.Background(), "bid-1", 1, "We rotate keys quarterly.", 72)
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusCompleted, b.Sections[1].Status)
	assert.Empty(t, b.Sections[1].ManagerNotes)
	assert.Equal(t, 72, b.Sections[1].Confidence)
	require.NotNil(t, b.Sections[1].DraftedAt)
}

func TestApplyAIDraftBlankKeepsFlag(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusDrafting
	bid.Sections[1].Status = models.SectionStatusFlagged
	bid.Sections[1].ManagerNotes = "too vague"
	svc, _, _, _ := newTestService(bid)

	b, err := svc.ApplyAIDraft(context.Background(), "bid-1", 1, "   ", 0)
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusFlagged, b.Sections[1].Status)
	assert.Equal(t, "too vague", b.Sections[1].ManagerNotes)
}

func TestSaveDraftBadIndex(t *testing.T) {
	svc, _, _, _ := newTestService(fiveSectionBid())
	_, err := svc.SaveDraft(context.Background(), "bid-1", 5, "x")
	assert.ErrorIs(t, err, ErrBadSection)
}

func TestSaveDraftRetriesOnRevisionConflict(t *testing.T) {
	bids := &memBidStore{bid: fiveSectionBid(), conflictsLeft: 2}
	svc := NewService(bids, &memNotifications{}, &memArchives{})

	_, err := svc.SaveDraft(context.Background(), "bid-1", 0, "x")
	require.NoError(t, err)
	assert.Equal(t, 3, bids.updates)
}

func TestFlagRequiresNotesAndLeavesOthersUntouched(t *testing.T) {
	bid := fiveSectionBid()
	for i := range bid.Sections {
		bid.Sections[i].DraftAnswer = "answered"
		bid.Sections[i].Status = models.SectionStatusCompleted
	}
	svc, _, notes, _ := newTestService(bid)

	_, err := svc.Flag(context.Background(), "bid-1", 1, "  ")
	assert.ErrorIs(t, err, ErrNotesRequired)
	assert.Empty(t, notes.created)

	b, err := svc.Flag(context.Background(), "bid-1", 1, "cite the accreditation")
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusFlagged, b.Sections[1].Status)
	assert.Equal(t, "cite the accreditation", b.Sections[1].ManagerNotes)
	for i, sec := range b.Sections {
		if i == 1 {
			continue
		}
		assert.Equal(t, models.SectionStatusCompleted, sec.Status)
	}
	require.Len(t, notes.created, 1)
	assert.Equal(t, models.NotifyFlag, notes.created[0].Type)
	assert.Equal(t, "owner-1", notes.created[0].RecipientID)
}

func TestApproveSectionClearsNotes(t *testing.T) {
	bid := fiveSectionBid()
	bid.Sections[2].Status = models.SectionStatusFlagged
	bid.Sections[2].ManagerNotes = "fix"
	svc, _, notes, _ := newTestService(bid)

	b, err := svc.ApproveSection(context.Background(), "bid-1", 2)
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusApproved, b.Sections[2].Status)
	assert.Empty(t, b.Sections[2].ManagerNotes)
	require.Len(t, notes.created, 1)
	assert.Equal(t, models.NotifyApproval, notes.created[0].Type)
}

func TestSubmitRequiresFullProgress(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusDrafting
	bid.Sections[0].DraftAnswer = "only one"
	svc, _, notes, _ := newTestService(bid)

	_, err := svc.Submit(context.Background(), "bid-1", "rev-1", "rev@example.com")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, notes.created)
}

func TestSubmitNotifiesReviewer(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusDrafting
	for i := range bid.Sections {
		bid.Sections[i].DraftAnswer = "done"
	}
	bid.Progress = 100
	svc, _, notes, _ := newTestService(bid)

	b, err := svc.Submit(context.Background(), "bid-1", "rev-1", "rev@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusReview, b.Status)
	assert.Equal(t, "rev-1", b.ReviewerID)
	require.NotNil(t, b.SubmittedAt)
	require.Len(t, notes.created, 1)
	assert.Equal(t, models.NotifySubmission, notes.created[0].Type)
	assert.Equal(t, "rev-1", notes.created[0].RecipientID)
}

func TestFinalizeRequiresAllApproved(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusReview
	for i := range bid.Sections {
		bid.Sections[i].Status = models.SectionStatusApproved
	}
	bid.Sections[3].Status = models.SectionStatusCompleted
	svc, _, _, _ := newTestService(bid)

	_, err := svc.Finalize(context.Background(), "bid-1")
	assert.ErrorIs(t, err, ErrNotAllApproved)
}

func TestFinalizeNotifiesOwner(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusReview
	for i := range bid.Sections {
		bid.Sections[i].Status = models.SectionStatusApproved
	}
	svc, _, notes, _ := newTestService(bid)

	b, err := svc.Finalize(context.Background(), "bid-1")
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusApproved, b.Status)
	require.Len(t, notes.created, 1)
	assert.Equal(t, models.NotifyFullApproval, notes.created[0].Type)
}

func TestCompleteArchivesWithPendingOutcome(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusApproved
	bid.Client = "Metro Council"
	for i := range bid.Sections {
		bid.Sections[i].DraftAnswer = "final"
		bid.Sections[i].Status = models.SectionStatusApproved
	}
	svc, _, notes, archives := newTestService(bid)

	b, archive, err := svc.Complete(context.Background(), "bid-1")
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusCompleted, b.Status)
	require.NotNil(t, b.CompletedAt)

	require.Len(t, archives.created, 1)
	assert.Equal(t, models.OutcomePending, archive.Outcome)
	assert.Equal(t, "Metro Council", archive.Client)
	assert.Len(t, archive.Sections, 5)

	require.Len(t, notes.created, 1)
	assert.Equal(t, models.NotifyCompletion, notes.created[0].Type)
}

func TestNotifyFailureDoesNotBlockTransition(t *testing.T) {
	bid := fiveSectionBid()
	bid.Sections[2].DraftAnswer = "answered"
	bid.Sections[2].Status = models.SectionStatusCompleted
	svc := NewService(&memBidStore{bid: bid}, failingNotifications{}, &memArchives{})

	b, err := svc.ApproveSection(context.Background(), "bid-1", 2)
	require.NoError(t, err)
	assert.Equal(t, models.SectionStatusApproved, b.Sections[2].Status)
}

func TestCompleteRejectsWrongStatus(t *testing.T) {
	bid := fiveSectionBid()
	bid.Status = models.BidStatusDrafting
	svc, _, _, _ := newTestService(bid)

	_, _, err := svc.Complete(context.Background(), "bid-1")
	assert.ErrorIs(t, err, ErrBadTransition)
}

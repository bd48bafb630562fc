// Package review owns the bid and section state machines: drafting
// progress, manager flag/approve, submission, final approval, completion.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
)

var (
	ErrBadSection     = errors.New("section index out of range")
	ErrNotesRequired  = errors.New("flagging a section requires notes")
	ErrNotReady       = errors.New("bid is not fully drafted")
	ErrNotAllApproved = errors.New("not every section is approved")
	ErrBadTransition  = errors.New("bid status does not allow this transition")
)

type BidStore interface {
	GetBid(ctx context.Context, bidID string) (models.Bid, error)
	UpdateBid(ctx context.Context, b models.Bid) error
}

type NotificationStore interface {
	Create(ctx context.Context, n models.Notification) error
}

type ArchiveStore interface {
	Create(ctx context.Context, a models.Archive) error
}

type Service struct {
	bids          BidStore
	notifications NotificationStore
	archives      ArchiveStore
}

func NewService(bids BidStore, notifications NotificationStore, archives ArchiveStore) *Service {
	return &Service{bids: bids, notifications: notifications, archives: archives}
}

// maxConflictRetries bounds the optimistic-concurrency retry loop.
const maxConflictRetries = 3

// mutate loads a bid, applies fn, and writes it back conditioned on the
// revision it read. A concurrent writer costs one retry, not a lost update.
func (s *Service) mutate(ctx context.Context, bidID string, fn func(b *models.Bid) error) (models.Bid, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		b, err := s.bids.GetBid(ctx, bidID)
		if err != nil {
			return models.Bid{}, err
		}
		if err := fn(&b); err != nil {
			return models.Bid{}, err
		}
		err = s.bids.UpdateBid(ctx, b)
		if err == nil {
			b.Revision++
			return b, nil
		}
		if !errors.Is(err, util.ErrRevisionConflict) {
			return models.Bid{}, err
		}
		lastErr = err
	}
	return models.Bid{}, fmt.Errorf("update bid %s: %w", bidID, lastErr)
}

// Progress is the share of sections with a non-blank effective answer,
// rounded to the nearest whole percent.
func Progress(sections []models.Section) int {
	if len(sections) == 0 {
		return 0
	}
	answered := 0
	for _, sec := range sections {
		if strings.TrimSpace(sec.Answer()) != "" {
			answered++
		}
	}
	return int(math.Round(100 * float64(answered) / float64(len(sections))))
}

// SaveDraft stores a manual edit to one section. Saving over a flagged
// section clears the flag and its notes: the edit is the response to them.
func (s *Service) SaveDraft(ctx context.Context, bidID string, index int, draft string) (models.Bid, error) {
	return s.mutate(ctx, bidID, func(b *models.Bid) error {
		if index < 0 || index >= len(b.Sections) {
			return ErrBadSection
		}
		sec := &b.Sections[index]
		sec.DraftAnswer = draft
		sec.ManagerNotes = ""
		if strings.TrimSpace(sec.Answer()) == "" {
			sec.Status = models.SectionStatusEmpty
		} else {
			sec.Status = models.SectionStatusCompleted
		}
		touchDrafting(b)
		return nil
	})
}

// ApplyAIDraft records a generated answer and its confidence score. A
// non-blank answer over a flagged section clears the flag and its notes,
// the same as a manual save: the redraft is the response to them.
func (s *Service) ApplyAIDraft(ctx context.Context, bidID string, index int, answer string, confidence int) (models.Bid, error) {
	now := time.Now().UTC()
	return s.mutate(ctx, bidID, func(b *models.Bid) error {
		if index < 0 || index >= len(b.Sections) {
			return ErrBadSection
		}
		sec := &b.Sections[index]
		sec.AIResponse = answer
		sec.Confidence = confidence
		sec.DraftedAt = &now
		if strings.TrimSpace(sec.Answer()) != "" {
			sec.Status = models.SectionStatusCompleted
			sec.ManagerNotes = ""
		}
		touchDrafting(b)
		return nil
	})
}

// Flag marks one section for rework. Notes are mandatory: a flag without a
// reason is useless to the owner.
func (s *Service) Flag(ctx context.Context, bidID string, index int, notes string) (models.Bid, error) {
	if strings.TrimSpace(notes) == "" {
		return models.Bid{}, ErrNotesRequired
	}
	b, err := s.mutate(ctx, bidID, func(b *models.Bid) error {
		if index < 0 || index >= len(b.Sections) {
			return ErrBadSection
		}
		b.Sections[index].Status = models.SectionStatusFlagged
		b.Sections[index].ManagerNotes = notes
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}
	s.notify(ctx, b.OwnerID, b.BidID, models.NotifyFlag,
		fmt.Sprintf("Section %d of %q was flagged for rework.", index+1, b.BidName))
	return b, nil
}

// ApproveSection approves one section and clears any leftover notes, so an
// approved section never carries flag remnants.
func (s *Service) ApproveSection(ctx context.Context, bidID string, index int) (models.Bid, error) {
	b, err := s.mutate(ctx, bidID, func(b *models.Bid) error {
		if index < 0 || index >= len(b.Sections) {
			return ErrBadSection
		}
		b.Sections[index].Status = models.SectionStatusApproved
		b.Sections[index].ManagerNotes = ""
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}
	s.notify(ctx, b.OwnerID, b.BidID, models.NotifyApproval,
		fmt.Sprintf("Section %d of %q was approved.", index+1, b.BidName))
	return b, nil
}

// Submit hands a fully drafted bid to a reviewer.
func (s *Service) Submit(ctx context.Context, bidID, reviewerID, reviewerEmail string) (models.Bid, error) {
	now := time.Now().UTC()
	b, err := s.mutate(ctx, bidID, func(b *models.Bid) error {
		if b.Status != models.BidStatusScoping && b.Status != models.BidStatusDrafting {
			return ErrBadTransition
		}
		if Progress(b.Sections) != 100 {
			return ErrNotReady
		}
		b.Status = models.BidStatusReview
		b.ReviewerID = reviewerID
		b.ReviewerEmail = reviewerEmail
		b.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}
	s.notify(ctx, reviewerID, b.BidID, models.NotifySubmission,
		fmt.Sprintf("%q was submitted for your review.", b.BidName))
	return b, nil
}

// Finalize approves the whole bid once every section is approved.
func (s *Service) Finalize(ctx context.Context, bidID string) (models.Bid, error) {
	b, err := s.mutate(ctx, bidID, func(b *models.Bid) error {
		if b.Status != models.BidStatusReview {
			return ErrBadTransition
		}
		for _, sec := range b.Sections {
			if sec.Status != models.SectionStatusApproved {
				return ErrNotAllApproved
			}
		}
		b.Status = models.BidStatusApproved
		return nil
	})
	if err != nil {
		return models.Bid{}, err
	}
	s.notify(ctx, b.OwnerID, b.BidID, models.NotifyFullApproval,
		fmt.Sprintf("%q is fully approved and ready to send.", b.BidName))
	return b, nil
}

// Complete closes out an approved bid and snapshots it into the archive
// with a pending outcome.
func (s *Service) Complete(ctx context.Context, bidID string) (models.Bid, models.Archive, error) {
	now := time.Now().UTC()
	b, err := s.mutate(ctx, bidID, func(b *models.Bid) error {
		if b.Status != models.BidStatusApproved {
			return ErrBadTransition
		}
		b.Status = models.BidStatusCompleted
		b.CompletedAt = &now
		return nil
	})
	if err != nil {
		return models.Bid{}, models.Archive{}, err
	}
	archive := models.Archive{
		ArchiveID: uuid.NewString(),
		BidID:     b.BidID,
		OwnerID:   b.OwnerID,
		OrgID:     b.OrgID,
		BidName:   b.BidName,
		Client:    b.Client,
		Outcome:   models.OutcomePending,
		Sections:  b.Sections,
	}
	if err := s.archives.Create(ctx, archive); err != nil {
		return models.Bid{}, models.Archive{}, fmt.Errorf("archive bid %s: %w", b.BidID, err)
	}
	s.notify(ctx, b.OwnerID, b.BidID, models.NotifyCompletion,
		fmt.Sprintf("%q was completed and archived.", b.BidName))
	return b, archive, nil
}

func touchDrafting(b *models.Bid) {
	b.Progress = Progress(b.Sections)
	if b.Status == models.BidStatusScoping {
		b.Status = models.BidStatusDrafting
	}
}

// notify is best-effort: a failed insert should never roll back the
// transition it reports on.
func (s *Service) notify(ctx context.Context, recipientID, bidID, typ, message string) {
	if recipientID == "" {
		return
	}
	err := s.notifications.Create(ctx, models.Notification{
		NotificationID: uuid.NewString(),
		RecipientID:    recipientID,
		BidID:          bidID,
		Type:           typ,
		Message:        message,
	})
	if err != nil {
		log.Printf("notify %s for bid %s: %v", typ, bidID, err)
	}
}

package models

import "time"

// Bid lifecycle statuses.
const (
	BidStatusScoping   = "scoping"
	BidStatusDrafting  = "drafting"
	BidStatusReview    = "review"
	BidStatusApproved  = "approved"
	BidStatusCompleted = "completed"
)

// Section statuses.
const (
	SectionStatusEmpty     = "empty"
	SectionStatusCompleted = "completed"
	SectionStatusAttention = "attention"
	SectionStatusFlagged   = "flagged"
	SectionStatusApproved  = "approved"
)

// Notification types emitted by review transitions.
const (
	NotifyApproval     = "approval"
	NotifyFlag         = "flag"
	NotifySubmission   = "submission"
	NotifyFullApproval = "full_approval"
	NotifyCompletion   = "completion"
)

// Archive outcomes.
const (
	OutcomePending = "pending"
	OutcomeWon     = "won"
	OutcomeLost    = "lost"
)

type Bid struct {
	BidID         string     `json:"bid_id"`
	OwnerID       string     `json:"owner_id"`
	OrgID         string     `json:"org_id"`
	BidName       string     `json:"bid_name"`
	Client        string     `json:"client,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	Sections      []Section  `json:"sections"`
	ReviewerID    string     `json:"reviewer_id,omitempty"`
	ReviewerEmail string     `json:"reviewer_email,omitempty"`
	TenderPath    string     `json:"tender_path,omitempty"`
	// Revision guards read-modify-write updates of the sections array.
	Revision    int64      `json:"revision"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Section struct {
	Question     string     `json:"question"`
	Heading      string     `json:"heading,omitempty"`
	Status       string     `json:"status"`
	DraftAnswer  string     `json:"draft_answer,omitempty"`
	AIResponse   string     `json:"ai_response,omitempty"`
	Confidence   int        `json:"confidence,omitempty"`
	ManagerNotes string     `json:"manager_notes,omitempty"`
	DraftedAt    *time.Time `json:"drafted_at,omitempty"`
}

// Answer is the effective section content: the manual draft when present,
// otherwise the AI draft kept as fallback.
func (s Section) Answer() string {
	if s.DraftAnswer != "" {
		return s.DraftAnswer
	}
	return s.AIResponse
}

// Knowledge document categories.
const (
	CategoryMaster      = "master"
	CategoryUpdate      = "update"
	CategoryPolicy      = "policy"
	CategoryCaseStudy   = "case-study"
	CategoryTitlePage   = "title-page"
	CategoryContactPage = "contact-page"
)

// Knowledge document statuses.
const (
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
)

// FieldPosition is a normalized page coordinate for a template overlay field.
type FieldPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type FontStyle struct {
	Family string `json:"family"`
	Size   int    `json:"size"`
}

type KnowledgeDoc struct {
	DocID         string                   `json:"doc_id"`
	OwnerID       string                   `json:"owner_id"`
	OrgID         string                   `json:"org_id"`
	FileName      string                   `json:"file_name"`
	StoragePath   string                   `json:"storage_path"`
	Category      string                   `json:"category"`
	Priority      int                      `json:"priority"`
	Version       int                      `json:"version"`
	ExcludeFromAI bool                     `json:"exclude_from_ai"`
	Status        string                   `json:"status"`
	Namespace     string                   `json:"namespace,omitempty"`
	FailReason    string                   `json:"fail_reason,omitempty"`
	Mapping       map[string]FieldPosition `json:"mapping,omitempty"`
	FontStyle     *FontStyle               `json:"font_style,omitempty"`
	UploadedAt    time.Time                `json:"uploaded_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// IsBranding reports whether the category is a template/branding asset that
// must never be indexed for retrieval.
func IsBranding(category string) bool {
	return category == CategoryTitlePage || category == CategoryContactPage
}

type Notification struct {
	NotificationID string    `json:"notification_id"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	BidID          string    `json:"bid_id,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

type Archive struct {
	ArchiveID  string    `json:"archive_id"`
	BidID      string    `json:"bid_id"`
	OwnerID    string    `json:"owner_id"`
	OrgID      string    `json:"org_id"`
	BidName    string    `json:"bid_name"`
	Client     string    `json:"client,omitempty"`
	Outcome    string    `json:"outcome"`
	Sections   []Section `json:"sections"`
	ArchivedAt time.Time `json:"archived_at"`
}

type Invite struct {
	InviteID  string    `json:"invite_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	OrgID     string    `json:"org_id"`
	InvitedBy string    `json:"invited_by"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// User roles.
const (
	RoleStandard = "standard"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

type UserProfile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	OrgID       string    `json:"org_id"`
	CreatedAt   time.Time `json:"created_at"`
}

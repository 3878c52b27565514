package marketing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

var (
	ErrCampaignNotFound       = core.NewNotFoundError("campaign")
	ErrMarketingEmailNotFound = core.NewNotFoundError("marketing email")
	ErrRecipientNotFound      = core.NewNotFoundError("campaign recipient")
	ErrSegmentNotFound        = core.NewNotFoundError("segment")

	ErrCampaignIDRequired = core.NewValidationError(errors.New("campaign_id is required"))
	ErrContactIDsRequired = core.NewValidationError(errors.New("contact_ids list is required"))
	ErrNoEmails           = core.NewValidationError(errors.New("campaign has no emails to send"))
	ErrNotSendable        = core.NewValidationError(errors.New("cannot send a completed or cancelled campaign"))
	ErrInvalidEvent       = core.NewFieldError("event", "event must be one of: sent, opened, clicked, bounced, unsubscribed")
	ErrDynamicAdd         = core.NewValidationError(errors.New("Cannot manually add contacts to a dynamic segment"))
	ErrDynamicRemove      = core.NewValidationError(errors.New("Cannot manually remove contacts from a dynamic segment"))
)

type (
	CampaignRepository interface {
		CreateCampaign(ctx context.Context, c Campaign, exec ...core.DBExecutor) error
		UpdateCampaign(ctx context.Context, c Campaign, exec ...core.DBExecutor) error
		DeleteCampaign(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetCampaign(ctx context.Context, id string, exec ...core.DBExecutor) (Campaign, error)
		// LockCampaign reads the campaign row FOR UPDATE; exec must be a transaction.
		LockCampaign(ctx context.Context, id string, exec core.DBExecutor) (Campaign, error)
		QueryCampaigns(ctx context.Context, filter CampaignFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Campaign, error)
		SetCampaignTags(ctx context.Context, id string, tagIDs []int, exec ...core.DBExecutor) error
		IncrementCampaignCounter(ctx context.Context, id string, counter Counter, n int, exec ...core.DBExecutor) error
	}

	MarketingEmailRepository interface {
		CreateMarketingEmail(ctx context.Context, e MarketingEmail, exec ...core.DBExecutor) error
		UpdateMarketingEmail(ctx context.Context, e MarketingEmail, exec ...core.DBExecutor) error
		DeleteMarketingEmail(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetMarketingEmail(ctx context.Context, id string, exec ...core.DBExecutor) (MarketingEmail, error)
		QueryMarketingEmails(ctx context.Context, filter MarketingEmailFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]MarketingEmail, error)
	}

	RecipientRepository interface {
		CreateRecipient(ctx context.Context, r CampaignRecipient, exec ...core.DBExecutor) error
		UpdateRecipient(ctx context.Context, r CampaignRecipient, exec ...core.DBExecutor) error
		DeleteRecipient(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetRecipient(ctx context.Context, id string, exec ...core.DBExecutor) (CampaignRecipient, error)
		// LockRecipient reads the recipient row FOR UPDATE; exec must be a transaction.
		LockRecipient(ctx context.Context, id string, exec core.DBExecutor) (CampaignRecipient, error)
		QueryRecipients(ctx context.Context, filter CampaignRecipientFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]CampaignRecipient, error)
		// AddRecipients adds the existing contacts among contactIDs to the campaign as pending
		// recipients. It returns how many were added and how many already were recipients.
		AddRecipients(ctx context.Context, campaignID string, contactIDs []string, now time.Time, exec ...core.DBExecutor) (added, existing int, err error)
		MarkRecipientsSent(ctx context.Context, ids []string, now time.Time, exec ...core.DBExecutor) error
		OptOutContact(ctx context.Context, contactID string, exec ...core.DBExecutor) error
	}

	SegmentRepository interface {
		CreateSegment(ctx context.Context, s Segment, exec ...core.DBExecutor) error
		UpdateSegment(ctx context.Context, s Segment, exec ...core.DBExecutor) error
		DeleteSegment(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetSegment(ctx context.Context, id string, exec ...core.DBExecutor) (Segment, error)
		QuerySegments(ctx context.Context, filter SegmentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Segment, error)
		AddSegmentContacts(ctx context.Context, id string, contactIDs []string, exec ...core.DBExecutor) (int, error)
		RemoveSegmentContacts(ctx context.Context, id string, contactIDs []string, exec ...core.DBExecutor) (int, error)
		SetSegmentContactCount(ctx context.Context, id string, n int, exec ...core.DBExecutor) error
	}

	Repository interface {
		CampaignRepository
		MarketingEmailRepository
		RecipientRepository
		SegmentRepository
	}

	// ContactFinder selects CRM contacts.
	ContactFinder interface {
		QueryContacts(ctx context.Context, filter crm.ContactFilter, ordering []core.DBOrdering) ([]crm.Contact, error)
		CountContacts(ctx context.Context, filter crm.ContactFilter) (int, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		contacts ContactFinder
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(db core.DB, repo Repository, contacts ContactFinder, mailSvc core.EmailService, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{db: db, repo: repo, contacts: contacts, mailSvc: mailSvc, validate: validate, logger: logger}
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validUUIDs drops blanks, duplicates and malformed ids: unknown contacts are skipped anyway.
func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		if validUUID(id) {
			out = append(out, id)
		}
	}
	return out
}

// Campaigns

func validateCampaign(validate *validator.Validate, c Campaign) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.StartDate.Valid && c.EndDate.Valid && c.EndDate.Time.Before(c.StartDate.Time) {
		return core.NewFieldError("end_date", "end date must not be before start date")
	}
	return nil
}

func (svc *Service) CreateCampaign(ctx context.Context, userID string, in CampaignInput) (Campaign, error) {
	now := core.Now()
	c := Campaign{ID: uuid.NewString(), Status: StatusDraft, CreatedByID: userID, CreatedAt: now, UpdatedAt: now}
	in.Apply(&c)
	if err := validateCampaign(svc.validate, c); err != nil {
		return Campaign{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateCampaign(ctx, c, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetCampaignTags(ctx, c.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Campaign{}, err
	}
	return svc.repo.GetCampaign(ctx, c.ID)
}

func (svc *Service) UpdateCampaign(ctx context.Context, c Campaign, in CampaignInput) (Campaign, error) {
	in.Apply(&c)
	if err := validateCampaign(svc.validate, c); err != nil {
		return Campaign{}, err
	}
	c.UpdatedAt = core.Now()

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.UpdateCampaign(ctx, c, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetCampaignTags(ctx, c.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Campaign{}, err
	}
	return svc.repo.GetCampaign(ctx, c.ID)
}

func (svc *Service) DeleteCampaign(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrCampaignNotFound
	}
	return svc.repo.DeleteCampaign(ctx, id)
}

func (svc *Service) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	if !validUUID(id) {
		return Campaign{}, ErrCampaignNotFound
	}
	return svc.repo.GetCampaign(ctx, id)
}

func (svc *Service) QueryCampaigns(ctx context.Context, filter CampaignFilter, ordering []core.DBOrdering) ([]Campaign, error) {
	return svc.repo.QueryCampaigns(ctx, filter, ordering)
}

func (svc *Service) CampaignEmails(ctx context.Context, id string) ([]MarketingEmail, error) {
	return svc.repo.QueryMarketingEmails(ctx, MarketingEmailFilter{Campaign: id}, nil)
}

func (svc *Service) CampaignRecipients(ctx context.Context, id string) ([]CampaignRecipient, error) {
	return svc.repo.QueryRecipients(ctx, CampaignRecipientFilter{Campaign: id}, nil)
}

// SendCampaign sends the first email of the sequence to every pending recipient that can
// receive it and marks them sent. A draft or scheduled campaign becomes active.
func (svc *Service) SendCampaign(ctx context.Context, id string) (SendResult, error) {
	if !validUUID(id) {
		return SendResult{}, ErrCampaignNotFound
	}

	var (
		res      SendResult
		messages []*core.EmailMessage
	)
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		c, err := svc.repo.LockCampaign(ctx, id, tx)
		if err != nil {
			return err
		}
		if !c.Sendable() {
			return ErrNotSendable
		}
		emails, err := svc.repo.QueryMarketingEmails(ctx, MarketingEmailFilter{Campaign: c.ID}, nil, tx)
		if err != nil {
			return err
		}
		if len(emails) == 0 {
			return ErrNoEmails
		}
		email := emails[0]

		pending, err := svc.repo.QueryRecipients(ctx, CampaignRecipientFilter{Campaign: c.ID, Status: RecipientPending}, nil, tx)
		if err != nil {
			return err
		}
		sent := make([]string, 0, len(pending))
		for _, r := range pending {
			if !r.Reachable() {
				res.Skipped++
				continue
			}
			sent = append(sent, r.ID)
			messages = append(messages, &core.EmailMessage{
				To:       []mail.Address{{Name: r.ContactName, Address: r.ContactEmail}},
				Subject:  email.Subject,
				BodyHTML: email.HTMLContent,
				BodyStr:  email.TextContent,
			})
		}
		res.Sent = len(sent)

		now := core.Now()
		if len(sent) > 0 {
			if err = svc.repo.MarkRecipientsSent(ctx, sent, now, tx); err != nil {
				return err
			}
			if err = svc.repo.IncrementCampaignCounter(ctx, c.ID, CounterSent, len(sent), tx); err != nil {
				return err
			}
		}
		if c.Status == StatusDraft || c.Status == StatusScheduled {
			c.Status = StatusActive
			c.UpdatedAt = now
			return svc.repo.UpdateCampaign(ctx, c, tx)
		}
		return nil
	})
	if err != nil {
		return SendResult{}, err
	}

	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	svc.logger.Info("campaign sent", map[string]interface{}{"campaign": id, "sent": res.Sent, "skipped": res.Skipped})
	res.Message = fmt.Sprintf("Sent campaign email to %d recipients. %d were skipped.", res.Sent, res.Skipped)
	return res, nil
}

// Marketing emails

func (svc *Service) CreateMarketingEmail(ctx context.Context, userID string, in MarketingEmailInput) (MarketingEmail, error) {
	now := core.Now()
	e := MarketingEmail{ID: uuid.NewString(), CreatedByID: userID, CreatedAt: now, UpdatedAt: now}
	in.Apply(&e)
	if err := svc.validate.Struct(e); err != nil {
		return MarketingEmail{}, err
	}
	if err := svc.repo.CreateMarketingEmail(ctx, e); err != nil {
		return MarketingEmail{}, err
	}
	return svc.repo.GetMarketingEmail(ctx, e.ID)
}

func (svc *Service) UpdateMarketingEmail(ctx context.Context, e MarketingEmail, in MarketingEmailInput) (MarketingEmail, error) {
	in.Apply(&e)
	if err := svc.validate.Struct(e); err != nil {
		return MarketingEmail{}, err
	}
	e.UpdatedAt = core.Now()
	if err := svc.repo.UpdateMarketingEmail(ctx, e); err != nil {
		return MarketingEmail{}, err
	}
	return svc.repo.GetMarketingEmail(ctx, e.ID)
}

func (svc *Service) DeleteMarketingEmail(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrMarketingEmailNotFound
	}
	return svc.repo.DeleteMarketingEmail(ctx, id)
}

func (svc *Service) GetMarketingEmail(ctx context.Context, id string) (MarketingEmail, error) {
	if !validUUID(id) {
		return MarketingEmail{}, ErrMarketingEmailNotFound
	}
	return svc.repo.GetMarketingEmail(ctx, id)
}

func (svc *Service) QueryMarketingEmails(ctx context.Context, filter MarketingEmailFilter, ordering []core.DBOrdering) ([]MarketingEmail, error) {
	return svc.repo.QueryMarketingEmails(ctx, filter, ordering)
}

// Recipients

func (svc *Service) CreateRecipient(ctx context.Context, in CampaignRecipientInput) (CampaignRecipient, error) {
	now := core.Now()
	r := CampaignRecipient{ID: uuid.NewString(), Status: RecipientPending, CreatedAt: now, UpdatedAt: now}
	in.Apply(&r)
	if err := svc.validate.Struct(r); err != nil {
		return CampaignRecipient{}, err
	}
	if err := svc.repo.CreateRecipient(ctx, r); err != nil {
		return CampaignRecipient{}, err
	}
	return svc.repo.GetRecipient(ctx, r.ID)
}

func (svc *Service) UpdateRecipient(ctx context.Context, r CampaignRecipient, in CampaignRecipientInput) (CampaignRecipient, error) {
	in.Apply(&r)
	if err := svc.validate.Struct(r); err != nil {
		return CampaignRecipient{}, err
	}
	r.UpdatedAt = core.Now()
	if err := svc.repo.UpdateRecipient(ctx, r); err != nil {
		return CampaignRecipient{}, err
	}
	return svc.repo.GetRecipient(ctx, r.ID)
}

func (svc *Service) DeleteRecipient(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrRecipientNotFound
	}
	return svc.repo.DeleteRecipient(ctx, id)
}

func (svc *Service) GetRecipient(ctx context.Context, id string) (CampaignRecipient, error) {
	if !validUUID(id) {
		return CampaignRecipient{}, ErrRecipientNotFound
	}
	return svc.repo.GetRecipient(ctx, id)
}

func (svc *Service) QueryRecipients(ctx context.Context, filter CampaignRecipientFilter, ordering []core.DBOrdering) ([]CampaignRecipient, error) {
	return svc.repo.QueryRecipients(ctx, filter, ordering)
}

// AddContacts makes the given contacts pending recipients of a campaign, skipping unknown ones.
func (svc *Service) AddContacts(ctx context.Context, campaignID string, contactIDs []string) (AddContactsResult, error) {
	if campaignID == "" {
		return AddContactsResult{}, ErrCampaignIDRequired
	}
	if len(contactIDs) == 0 {
		return AddContactsResult{}, ErrContactIDsRequired
	}
	c, err := svc.GetCampaign(ctx, campaignID)
	if err != nil {
		return AddContactsResult{}, err
	}

	added, existing, err := svc.repo.AddRecipients(ctx, c.ID, validUUIDs(contactIDs), core.Now())
	if err != nil {
		return AddContactsResult{}, err
	}
	return AddContactsResult{
		Message:  fmt.Sprintf("Added %d contacts to campaign. %d were already recipients.", added, existing),
		Added:    added,
		Existing: existing,
	}, nil
}

// applyEvent records a tracking event on r. It returns the campaign counter to bump, if any.
func applyEvent(r *CampaignRecipient, event string, now time.Time) (Counter, bool, error) {
	advance := func(status string) {
		if RecipientStatuses.Index(r.Status) < RecipientStatuses.Index(status) {
			r.Status = status
		}
	}
	stamp := func(t *null.Time) bool {
		if t.Valid {
			return false
		}
		*t = null.TimeFrom(now)
		return true
	}

	switch event {
	case RecipientSent:
		advance(RecipientSent)
		return CounterSent, stamp(&r.SentAt), nil
	case RecipientOpened:
		advance(RecipientOpened)
		return CounterOpen, stamp(&r.OpenedAt), nil
	case RecipientClicked:
		advance(RecipientClicked)
		return CounterClick, stamp(&r.ClickedAt), nil
	case RecipientBounced:
		if !stamp(&r.BouncedAt) {
			return CounterBounce, false, nil
		}
		r.Status = RecipientBounced
		return CounterBounce, true, nil
	case RecipientUnsubscribed:
		if !stamp(&r.UnsubscribedAt) {
			return CounterUnsubscribe, false, nil
		}
		r.Status = RecipientUnsubscribed
		return CounterUnsubscribe, true, nil
	}
	return "", false, ErrInvalidEvent
}

// TrackEvent records a delivery event for a recipient and updates the campaign statistics.
func (svc *Service) TrackEvent(ctx context.Context, id, event string) (CampaignRecipient, error) {
	if !validUUID(id) {
		return CampaignRecipient{}, ErrRecipientNotFound
	}
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		r, err := svc.repo.LockRecipient(ctx, id, tx)
		if err != nil {
			return err
		}
		now := core.Now()
		counter, first, err := applyEvent(&r, event, now)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
		r.UpdatedAt = now
		if err = svc.repo.UpdateRecipient(ctx, r, tx); err != nil {
			return err
		}
		if err = svc.repo.IncrementCampaignCounter(ctx, r.CampaignID, counter, 1, tx); err != nil {
			return err
		}
		if event == RecipientUnsubscribed {
			return svc.repo.OptOutContact(ctx, r.ContactID, tx)
		}
		return nil
	})
	if err != nil {
		return CampaignRecipient{}, err
	}
	return svc.repo.GetRecipient(ctx, id)
}

// Segments

// normalizeCriteria validates the criteria of s and stores them in canonical form.
func normalizeCriteria(s *Segment) error {
	c, err := s.ParsedCriteria()
	if err != nil {
		return err
	}
	if c.Conditions == nil {
		c.Conditions = []crm.Condition{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding criteria")
	}
	s.Criteria = types.JSONText(raw)
	return nil
}

func (svc *Service) CreateSegment(ctx context.Context, userID string, in SegmentInput) (Segment, error) {
	now := core.Now()
	s := Segment{ID: uuid.NewString(), IsDynamic: true, CreatedByID: userID, CreatedAt: now, UpdatedAt: now}
	in.Apply(&s)
	if err := svc.validate.Struct(s); err != nil {
		return Segment{}, err
	}
	if err := normalizeCriteria(&s); err != nil {
		return Segment{}, err
	}
	if err := svc.repo.CreateSegment(ctx, s); err != nil {
		return Segment{}, err
	}
	if s.IsDynamic {
		return svc.RefreshSegment(ctx, s)
	}
	return svc.repo.GetSegment(ctx, s.ID)
}

func (svc *Service) UpdateSegment(ctx context.Context, s Segment, in SegmentInput) (Segment, error) {
	in.Apply(&s)
	if err := svc.validate.Struct(s); err != nil {
		return Segment{}, err
	}
	if err := normalizeCriteria(&s); err != nil {
		return Segment{}, err
	}
	s.UpdatedAt = core.Now()
	if err := svc.repo.UpdateSegment(ctx, s); err != nil {
		return Segment{}, err
	}
	return svc.RefreshSegment(ctx, s)
}

func (svc *Service) DeleteSegment(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrSegmentNotFound
	}
	return svc.repo.DeleteSegment(ctx, id)
}

func (svc *Service) GetSegment(ctx context.Context, id string) (Segment, error) {
	if !validUUID(id) {
		return Segment{}, ErrSegmentNotFound
	}
	return svc.repo.GetSegment(ctx, id)
}

func (svc *Service) QuerySegments(ctx context.Context, filter SegmentFilter, ordering []core.DBOrdering) ([]Segment, error) {
	return svc.repo.QuerySegments(ctx, filter, ordering)
}

// contactFilter selects the members of s: explicit ones when static, matching ones when dynamic.
func contactFilter(s Segment) (crm.ContactFilter, error) {
	if !s.IsDynamic {
		return crm.ContactFilter{Segment: s.ID}, nil
	}
	c, err := s.ParsedCriteria()
	if err != nil {
		return crm.ContactFilter{}, err
	}
	return crm.ContactFilter{Criteria: c}, nil
}

func (svc *Service) SegmentContacts(ctx context.Context, s Segment, ordering []core.DBOrdering) ([]crm.Contact, error) {
	filter, err := contactFilter(s)
	if err != nil {
		return nil, err
	}
	return svc.contacts.QueryContacts(ctx, filter, ordering)
}

// RefreshSegment recomputes the contact count of s.
func (svc *Service) RefreshSegment(ctx context.Context, s Segment) (Segment, error) {
	filter, err := contactFilter(s)
	if err != nil {
		return Segment{}, err
	}
	n, err := svc.contacts.CountContacts(ctx, filter)
	if err != nil {
		return Segment{}, err
	}
	if err = svc.repo.SetSegmentContactCount(ctx, s.ID, n); err != nil {
		return Segment{}, err
	}
	return svc.repo.GetSegment(ctx, s.ID)
}

func (svc *Service) AddSegmentContacts(ctx context.Context, s Segment, contactIDs []string) (SegmentContactsResult, error) {
	if s.IsDynamic {
		return SegmentContactsResult{}, ErrDynamicAdd
	}
	if len(contactIDs) == 0 {
		return SegmentContactsResult{}, ErrContactIDsRequired
	}
	added, err := svc.repo.AddSegmentContacts(ctx, s.ID, validUUIDs(contactIDs))
	if err != nil {
		return SegmentContactsResult{}, err
	}
	if _, err = svc.RefreshSegment(ctx, s); err != nil {
		return SegmentContactsResult{}, err
	}
	return SegmentContactsResult{Message: fmt.Sprintf("Added %d contacts to segment.", added), Added: &added}, nil
}

func (svc *Service) RemoveSegmentContacts(ctx context.Context, s Segment, contactIDs []string) (SegmentContactsResult, error) {
	if s.IsDynamic {
		return SegmentContactsResult{}, ErrDynamicRemove
	}
	if len(contactIDs) == 0 {
		return SegmentContactsResult{}, ErrContactIDsRequired
	}
	removed, err := svc.repo.RemoveSegmentContacts(ctx, s.ID, validUUIDs(contactIDs))
	if err != nil {
		return SegmentContactsResult{}, err
	}
	if _, err = svc.RefreshSegment(ctx, s); err != nil {
		return SegmentContactsResult{}, err
	}
	return SegmentContactsResult{Message: fmt.Sprintf("Removed %d contacts from segment.", removed), Removed: &removed}, nil
}

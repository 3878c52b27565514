package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/marketing"
)

var (
	campaignCols = []string{
		"id", "name", "description", "status", "start_date", "end_date", "sent_count", "open_count", "click_count",
		"bounce_count", "unsubscribe_count", "assigned_to_id", "created_by_id", "created_at", "updated_at",
	}
	// counters are only changed through IncrementCampaignCounter
	campaignUpdateCols = []string{
		"name", "description", "status", "start_date", "end_date", "assigned_to_id", "updated_at",
	}
	campaignOrdering = map[string]string{
		"name":       "cmp.name",
		"start_date": "cmp.start_date",
		"end_date":   "cmp.end_date",
		"created_at": "cmp.created_at",
	}
	campaignCounters = map[marketing.Counter]bool{
		marketing.CounterSent:        true,
		marketing.CounterOpen:        true,
		marketing.CounterClick:       true,
		marketing.CounterBounce:      true,
		marketing.CounterUnsubscribe: true,
	}

	marketingEmailCols = []string{
		"id", "name", "subject", "html_content", "text_content", "campaign_id", "sequence_order", "delay_days",
		"created_by_id", "created_at", "updated_at",
	}
	marketingEmailOrdering = map[string]string{
		"campaign":       "me.campaign_id",
		"sequence_order": "me.sequence_order",
		"created_at":     "me.created_at",
	}

	recipientCols     = []string{"id", "campaign_id", "contact_id", "status", "sent_at", "opened_at", "clicked_at", "bounced_at", "unsubscribed_at", "created_at", "updated_at"}
	recipientOrdering = map[string]string{
		"status":     "r.status",
		"sent_at":    "r.sent_at",
		"opened_at":  "r.opened_at",
		"clicked_at": "r.clicked_at",
		"created_at": "r.created_at",
	}

	segmentCols     = []string{"id", "name", "description", "criteria", "contact_count", "is_dynamic", "created_by_id", "created_at", "updated_at"}
	segmentOrdering = map[string]string{
		"name":          "s.name",
		"contact_count": "s.contact_count",
		"created_at":    "s.created_at",
	}
)

type marketingRepository struct {
	repository
}

var _ marketing.Repository = (*marketingRepository)(nil) // interface compliance check

func NewMarketingRepository(exec core.DBExecutor) *marketingRepository {
	return &marketingRepository{repository{exec: exec}}
}

// Campaigns

func selectCampaigns() sq.SelectBuilder {
	return psql.Select("cmp.*", userName("au", "assigned_to_name"), userName("cu", "created_by_name"),
		"(SELECT COUNT(*) FROM marketing_email me WHERE me.campaign_id = cmp.id) AS email_count",
		"(SELECT COUNT(*) FROM campaign_recipient r WHERE r.campaign_id = cmp.id) AS recipient_count").
		From("campaign cmp").
		LeftJoin(`"user" au ON au.id = cmp.assigned_to_id`).
		Join(`"user" cu ON cu.id = cmp.created_by_id`)
}

func (repo marketingRepository) queryCampaigns(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) ([]marketing.Campaign, error) {
	campaigns := make([]marketing.Campaign, 0)
	if err := selectAll(ctx, exec, &campaigns, qb); err != nil {
		return nil, trapErr(err, "", "querying campaigns")
	}
	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}
	tags, err := loadTags(ctx, exec, crm.TagCampaign, ids)
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		campaigns[i].Tags = tags[campaigns[i].ID]
	}
	return campaigns, nil
}

func (repo marketingRepository) CreateCampaign(ctx context.Context, c marketing.Campaign, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "campaign", campaignCols, c), "campaign", "inserting campaign")
}

func (repo marketingRepository) UpdateCampaign(ctx context.Context, c marketing.Campaign, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "campaign", campaignUpdateCols, c)
	if err != nil {
		return trapErr(err, "campaign", "updating campaign")
	}
	return notFound(n, "campaign")
}

func (repo marketingRepository) DeleteCampaign(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "campaign", id)
	if err != nil {
		return trapErr(err, "campaign", "deleting campaign")
	}
	return notFound(n, "campaign")
}

func (repo marketingRepository) getCampaign(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) (marketing.Campaign, error) {
	campaigns, err := repo.queryCampaigns(ctx, exec, qb)
	if err != nil {
		return marketing.Campaign{}, trapErr(err, "campaign", "finding campaign")
	}
	if len(campaigns) == 0 {
		return marketing.Campaign{}, marketing.ErrCampaignNotFound
	}
	return campaigns[0], nil
}

func (repo marketingRepository) GetCampaign(ctx context.Context, id string, exec ...core.DBExecutor) (marketing.Campaign, error) {
	return repo.getCampaign(ctx, repo.getExec(exec), selectCampaigns().Where(sq.Eq{"cmp.id": id}))
}

func (repo marketingRepository) LockCampaign(ctx context.Context, id string, exec core.DBExecutor) (marketing.Campaign, error) {
	return repo.getCampaign(ctx, exec, selectCampaigns().Where(sq.Eq{"cmp.id": id}).Suffix("FOR UPDATE OF cmp"))
}

func (repo marketingRepository) QueryCampaigns(ctx context.Context, filter marketing.CampaignFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]marketing.Campaign, error) {
	qb := selectCampaigns()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "cmp.name", "cmp.description"))
	}
	qb = eqIfSet(qb, map[string]string{
		"cmp.status":         filter.Status,
		"cmp.assigned_to_id": filter.AssignedTo,
	})
	if filter.Tag != "" {
		qb = qb.Where(hasTag(crm.TagCampaign, "cmp", filter.Tag))
	}
	qb = qb.OrderBy(orderBy(ordering, campaignOrdering, "cmp.created_at DESC")...)
	return repo.queryCampaigns(ctx, repo.getExec(exec), qb)
}

func (repo marketingRepository) SetCampaignTags(ctx context.Context, id string, tagIDs []int, exec ...core.DBExecutor) error {
	return setTags(ctx, repo.getExec(exec), crm.TagCampaign, id, tagIDs)
}

func (repo marketingRepository) IncrementCampaignCounter(ctx context.Context, id string, counter marketing.Counter, n int, exec ...core.DBExecutor) error {
	if !campaignCounters[counter] {
		return errors.Errorf("unknown campaign counter %q", counter)
	}
	col := string(counter)
	qb := psql.Update("campaign").Set(col, sq.Expr(col+" + ?", n)).Where(sq.Eq{"id": id})
	_, err := execQuery(ctx, repo.getExec(exec), qb)
	return trapErr(err, "campaign", "incrementing campaign counter")
}

// Marketing emails

func selectMarketingEmails() sq.SelectBuilder {
	return psql.Select("me.*", "cmp.name AS campaign_name").
		From("marketing_email me").
		Join("campaign cmp ON cmp.id = me.campaign_id")
}

func (repo marketingRepository) CreateMarketingEmail(ctx context.Context, e marketing.MarketingEmail, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "marketing_email", marketingEmailCols, e),
		"marketing email", "inserting marketing email")
}

func (repo marketingRepository) UpdateMarketingEmail(ctx context.Context, e marketing.MarketingEmail, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "marketing_email", marketingEmailCols[1:], e)
	if err != nil {
		return trapErr(err, "marketing email", "updating marketing email")
	}
	return notFound(n, "marketing email")
}

func (repo marketingRepository) DeleteMarketingEmail(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "marketing_email", id)
	if err != nil {
		return trapErr(err, "marketing email", "deleting marketing email")
	}
	return notFound(n, "marketing email")
}

func (repo marketingRepository) GetMarketingEmail(ctx context.Context, id string, exec ...core.DBExecutor) (marketing.MarketingEmail, error) {
	var e marketing.MarketingEmail
	err := getOne(ctx, repo.getExec(exec), &e, selectMarketingEmails().Where(sq.Eq{"me.id": id}))
	return e, trapErr(err, "marketing email", "finding marketing email")
}

func (repo marketingRepository) QueryMarketingEmails(ctx context.Context, filter marketing.MarketingEmailFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]marketing.MarketingEmail, error) {
	qb := selectMarketingEmails()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "me.name", "me.subject", "me.html_content", "me.text_content"))
	}
	qb = eqIfSet(qb, map[string]string{
		"me.campaign_id":    filter.Campaign,
		"me.sequence_order": filter.SequenceOrder,
	})
	qb = qb.OrderBy(orderBy(ordering, marketingEmailOrdering, "me.campaign_id ASC", "me.sequence_order ASC")...)

	emails := make([]marketing.MarketingEmail, 0)
	if err := selectAll(ctx, repo.getExec(exec), &emails, qb); err != nil {
		return nil, trapErr(err, "", "querying marketing emails")
	}
	return emails, nil
}

// Recipients

func selectRecipients() sq.SelectBuilder {
	return psql.Select("r.*", "c.first_name || ' ' || c.last_name AS contact_name", "c.email AS contact_email",
		"c.email_opt_out AS contact_email_opt_out").
		From("campaign_recipient r").
		Join("contact c ON c.id = r.contact_id")
}

func (repo marketingRepository) CreateRecipient(ctx context.Context, r marketing.CampaignRecipient, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "campaign_recipient", recipientCols, r),
		"campaign recipient", "inserting campaign recipient")
}

func (repo marketingRepository) UpdateRecipient(ctx context.Context, r marketing.CampaignRecipient, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "campaign_recipient", recipientCols[1:], r)
	if err != nil {
		return trapErr(err, "campaign recipient", "updating campaign recipient")
	}
	return notFound(n, "campaign recipient")
}

func (repo marketingRepository) DeleteRecipient(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "campaign_recipient", id)
	if err != nil {
		return trapErr(err, "campaign recipient", "deleting campaign recipient")
	}
	return notFound(n, "campaign recipient")
}

func (repo marketingRepository) GetRecipient(ctx context.Context, id string, exec ...core.DBExecutor) (marketing.CampaignRecipient, error) {
	var r marketing.CampaignRecipient
	err := getOne(ctx, repo.getExec(exec), &r, selectRecipients().Where(sq.Eq{"r.id": id}))
	return r, trapErr(err, "campaign recipient", "finding campaign recipient")
}

func (repo marketingRepository) LockRecipient(ctx context.Context, id string, exec core.DBExecutor) (marketing.CampaignRecipient, error) {
	var r marketing.CampaignRecipient
	err := getOne(ctx, exec, &r, selectRecipients().Where(sq.Eq{"r.id": id}).Suffix("FOR UPDATE OF r"))
	return r, trapErr(err, "campaign recipient", "locking campaign recipient")
}

func (repo marketingRepository) QueryRecipients(ctx context.Context, filter marketing.CampaignRecipientFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]marketing.CampaignRecipient, error) {
	qb := selectRecipients()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "c.first_name", "c.last_name", "c.email"))
	}
	qb = eqIfSet(qb, map[string]string{
		"r.campaign_id": filter.Campaign,
		"r.contact_id":  filter.Contact,
		"r.status":      filter.Status,
	})
	qb = qb.OrderBy(orderBy(ordering, recipientOrdering, "r.created_at ASC")...)

	recipients := make([]marketing.CampaignRecipient, 0)
	if err := selectAll(ctx, repo.getExec(exec), &recipients, qb); err != nil {
		return nil, trapErr(err, "", "querying campaign recipients")
	}
	return recipients, nil
}

func (repo marketingRepository) AddRecipients(ctx context.Context, campaignID string, contactIDs []string, now time.Time, exec ...core.DBExecutor) (int, int, error) {
	e := repo.getExec(exec)

	var known int
	err := getOne(ctx, e, &known, psql.Select("COUNT(*)").From("contact").Where("id = ANY(?)", pq.Array(contactIDs)))
	if err != nil {
		return 0, 0, trapErr(err, "", "counting contacts")
	}

	added, err := execQuery(ctx, e, sq.Expr(fmt.Sprintf(
		`INSERT INTO campaign_recipient (%s)
		SELECT gen_random_uuid(), $1, c.id, $2, NULL, NULL, NULL, NULL, NULL, $3, $3 FROM contact c WHERE c.id = ANY($4)
		ON CONFLICT (campaign_id, contact_id) DO NOTHING`, joinCols(recipientCols)),
		campaignID, marketing.RecipientPending, now, pq.Array(contactIDs)))
	if err != nil {
		return 0, 0, trapErr(err, "campaign", "adding campaign recipients")
	}
	return int(added), known - int(added), nil
}

func (repo marketingRepository) MarkRecipientsSent(ctx context.Context, ids []string, now time.Time, exec ...core.DBExecutor) error {
	qb := psql.Update("campaign_recipient").
		Set("status", marketing.RecipientSent).
		Set("sent_at", now).
		Set("updated_at", now).
		Where("id = ANY(?)", pq.Array(ids))
	_, err := execQuery(ctx, repo.getExec(exec), qb)
	return trapErr(err, "", "marking recipients sent")
}

func (repo marketingRepository) OptOutContact(ctx context.Context, contactID string, exec ...core.DBExecutor) error {
	qb := psql.Update("contact").Set("email_opt_out", true).Where(sq.Eq{"id": contactID})
	_, err := execQuery(ctx, repo.getExec(exec), qb)
	return trapErr(err, "contact", "opting contact out")
}

// Segments

func selectSegments() sq.SelectBuilder {
	return psql.Select("s.*", userName("cu", "created_by_name")).
		From("segment s").
		Join(`"user" cu ON cu.id = s.created_by_id`)
}

func (repo marketingRepository) CreateSegment(ctx context.Context, s marketing.Segment, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "segment", segmentCols, s), "segment", "inserting segment")
}

func (repo marketingRepository) UpdateSegment(ctx context.Context, s marketing.Segment, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "segment", segmentCols[1:], s)
	if err != nil {
		return trapErr(err, "segment", "updating segment")
	}
	return notFound(n, "segment")
}

func (repo marketingRepository) DeleteSegment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "segment", id)
	if err != nil {
		return trapErr(err, "segment", "deleting segment")
	}
	return notFound(n, "segment")
}

func (repo marketingRepository) GetSegment(ctx context.Context, id string, exec ...core.DBExecutor) (marketing.Segment, error) {
	var s marketing.Segment
	err := getOne(ctx, repo.getExec(exec), &s, selectSegments().Where(sq.Eq{"s.id": id}))
	return s, trapErr(err, "segment", "finding segment")
}

func (repo marketingRepository) QuerySegments(ctx context.Context, filter marketing.SegmentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]marketing.Segment, error) {
	qb := selectSegments()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "s.name", "s.description"))
	}
	qb = eqIfSet(qb, map[string]string{"s.created_by_id": filter.CreatedBy})
	qb = boolIfSet(qb, "s.is_dynamic", filter.IsDynamic)
	qb = qb.OrderBy(orderBy(ordering, segmentOrdering, "s.name ASC")...)

	segments := make([]marketing.Segment, 0)
	if err := selectAll(ctx, repo.getExec(exec), &segments, qb); err != nil {
		return nil, trapErr(err, "", "querying segments")
	}
	return segments, nil
}

func (repo marketingRepository) AddSegmentContacts(ctx context.Context, id string, contactIDs []string, exec ...core.DBExecutor) (int, error) {
	n, err := execQuery(ctx, repo.getExec(exec), sq.Expr(
		`INSERT INTO segment_static_contacts (segment_id, contact_id)
		SELECT $1, c.id FROM contact c WHERE c.id = ANY($2)
		ON CONFLICT DO NOTHING`,
		id, pq.Array(contactIDs)))
	return int(n), trapErr(err, "segment", "adding segment contacts")
}

func (repo marketingRepository) RemoveSegmentContacts(ctx context.Context, id string, contactIDs []string, exec ...core.DBExecutor) (int, error) {
	qb := psql.Delete("segment_static_contacts").
		Where(sq.Eq{"segment_id": id}).
		Where("contact_id = ANY(?)", pq.Array(contactIDs))
	n, err := execQuery(ctx, repo.getExec(exec), qb)
	return int(n), trapErr(err, "segment", "removing segment contacts")
}

func (repo marketingRepository) SetSegmentContactCount(ctx context.Context, id string, n int, exec ...core.DBExecutor) error {
	qb := psql.Update("segment").Set("contact_count", n).Where(sq.Eq{"id": id})
	_, err := execQuery(ctx, repo.getExec(exec), qb)
	return trapErr(err, "segment", "updating segment contact count")
}

package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

var (
	addressCols = []string{"address_line1", "address_line2", "city", "state", "postal_code", "country"}

	accountCols = append([]string{
		"id", "name", "account_type", "industry", "website", "parent_id", "level", "primary_contact_id", "phone", "email",
		"assigned_to_id", "description", "annual_revenue", "employee_count", "created_by_id", "created_at", "updated_at",
	}, addressCols...)
	accountOrdering = map[string]string{
		"name":       "a.name",
		"created_at": "a.created_at",
	}

	contactCols = append([]string{
		"id", "first_name", "last_name", "title", "parent_id", "level", "account_id", "email", "phone", "mobile",
		"use_account_address", "status", "assigned_to_id", "description", "date_of_birth", "email_opt_out",
		"phone_opt_out", "created_by_id", "created_at", "updated_at",
	}, addressCols...)
	contactOrdering = map[string]string{
		"last_name":  "c.last_name",
		"first_name": "c.first_name",
		"created_at": "c.created_at",
	}

	opportunityCols = []string{
		"id", "name", "account_id", "primary_contact_id", "stage", "amount", "probability", "expected_close_date",
		"next_step", "description", "assigned_to_id", "created_by_id", "created_at", "updated_at",
	}
	opportunityOrdering = map[string]string{
		"expected_close_date": "o.expected_close_date",
		"amount":              "o.amount",
		"probability":         "o.probability",
		"created_at":          "o.created_at",
	}
)

// Accounts

func selectAccounts() sq.SelectBuilder {
	return psql.Select("a.*", "p.name AS parent_name", userName("au", "assigned_to_name"), userName("cu", "created_by_name")).
		From("account a").
		LeftJoin("account p ON p.id = a.parent_id").
		LeftJoin(`"user" au ON au.id = a.assigned_to_id`).
		Join(`"user" cu ON cu.id = a.created_by_id`)
}

func (repo crmRepository) queryAccounts(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) ([]crm.Account, error) {
	accounts := make([]crm.Account, 0)
	if err := selectAll(ctx, exec, &accounts, qb); err != nil {
		return nil, trapErr(err, "", "querying accounts")
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	tags, err := loadTags(ctx, exec, crm.TagAccount, ids)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].Tags = tags[accounts[i].ID]
	}
	return accounts, nil
}

func (repo crmRepository) CreateAccount(ctx context.Context, a crm.Account, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "account", accountCols, a), "account", "inserting account")
}

func (repo crmRepository) UpdateAccount(ctx context.Context, a crm.Account, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "account", accountCols[1:], a)
	if err != nil {
		return trapErr(err, "account", "updating account")
	}
	return notFound(n, "account")
}

func (repo crmRepository) DeleteAccount(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "account", id)
	if err != nil {
		return trapErr(err, "account", "deleting account")
	}
	return notFound(n, "account")
}

func (repo crmRepository) GetAccount(ctx context.Context, id string, exec ...core.DBExecutor) (crm.Account, error) {
	accounts, err := repo.queryAccounts(ctx, repo.getExec(exec), selectAccounts().Where(sq.Eq{"a.id": id}))
	if err != nil {
		return crm.Account{}, trapErr(err, "account", "finding account")
	}
	if len(accounts) == 0 {
		return crm.Account{}, crm.ErrAccountNotFound
	}
	return accounts[0], nil
}

func (repo crmRepository) QueryAccounts(ctx context.Context, filter crm.AccountFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.Account, error) {
	qb := selectAccounts()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "a.name", "a.description", "a.email", "a.phone", "a.city", "a.country"))
	}
	qb = eqIfSet(qb, map[string]string{
		"a.account_type":   filter.AccountType,
		"a.industry":       filter.Industry,
		"a.assigned_to_id": filter.AssignedTo,
		"a.parent_id":      filter.Parent,
	})
	if filter.Tag != "" {
		qb = qb.Where(hasTag(crm.TagAccount, "a", filter.Tag))
	}
	qb = qb.OrderBy(orderBy(ordering, accountOrdering, "a.name ASC")...)
	return repo.queryAccounts(ctx, repo.getExec(exec), qb)
}

func (repo crmRepository) AccountAncestors(ctx context.Context, id string, exec ...core.DBExecutor) ([]crm.Account, error) {
	qb := selectAccounts().Where("a.id IN ("+ancestry("account")+")", id).OrderBy("a.level ASC")
	return repo.queryAccounts(ctx, repo.getExec(exec), qb)
}

func (repo crmRepository) AccountDescendants(ctx context.Context, id string, exec ...core.DBExecutor) ([]crm.Account, error) {
	qb := selectAccounts().Where("a.id IN ("+subtree("account")+")", id).OrderBy("a.level ASC", "a.name ASC")
	return repo.queryAccounts(ctx, repo.getExec(exec), qb)
}

// Contacts

func selectContacts() sq.SelectBuilder {
	return psql.Select("c.*", "acc.name AS account_name", "p.first_name || ' ' || p.last_name AS parent_name",
		userName("au", "assigned_to_name"), userName("cu", "created_by_name")).
		From("contact c").
		LeftJoin("account acc ON acc.id = c.account_id").
		LeftJoin("contact p ON p.id = c.parent_id").
		LeftJoin(`"user" au ON au.id = c.assigned_to_id`).
		Join(`"user" cu ON cu.id = c.created_by_id`)
}

func (repo crmRepository) queryContacts(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) ([]crm.Contact, error) {
	contacts := make([]crm.Contact, 0)
	if err := selectAll(ctx, exec, &contacts, qb); err != nil {
		return nil, trapErr(err, "", "querying contacts")
	}
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	tags, err := loadTags(ctx, exec, crm.TagContact, ids)
	if err != nil {
		return nil, err
	}
	for i := range contacts {
		contacts[i].Tags = tags[contacts[i].ID]
	}
	return contacts, nil
}

func (repo crmRepository) CreateContact(ctx context.Context, c crm.Contact, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "contact", contactCols, c), "contact", "inserting contact")
}

func (repo crmRepository) UpdateContact(ctx context.Context, c crm.Contact, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "contact", contactCols[1:], c)
	if err != nil {
		return trapErr(err, "contact", "updating contact")
	}
	return notFound(n, "contact")
}

func (repo crmRepository) DeleteContact(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "contact", id)
	if err != nil {
		return trapErr(err, "contact", "deleting contact")
	}
	return notFound(n, "contact")
}

func (repo crmRepository) GetContact(ctx context.Context, id string, exec ...core.DBExecutor) (crm.Contact, error) {
	contacts, err := repo.queryContacts(ctx, repo.getExec(exec), selectContacts().Where(sq.Eq{"c.id": id}))
	if err != nil {
		return crm.Contact{}, trapErr(err, "contact", "finding contact")
	}
	if len(contacts) == 0 {
		return crm.Contact{}, crm.ErrContactNotFound
	}
	return contacts[0], nil
}

func filterContacts(qb sq.SelectBuilder, filter crm.ContactFilter) (sq.SelectBuilder, error) {
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search,
			"c.first_name", "c.last_name", "c.email", "c.phone", "c.mobile", "c.city", "c.country", "c.description"))
	}
	qb = eqIfSet(qb, map[string]string{
		"c.status":         filter.Status,
		"c.account_id":     filter.Account,
		"c.assigned_to_id": filter.AssignedTo,
		"c.parent_id":      filter.Parent,
	})
	if filter.Tag != "" {
		qb = qb.Where(hasTag(crm.TagContact, "c", filter.Tag))
	}
	if filter.IDs != nil {
		qb = qb.Where("c.id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.Segment != "" {
		qb = qb.Where("EXISTS (SELECT 1 FROM segment_static_contacts s WHERE s.contact_id = c.id AND s.segment_id = ?)", filter.Segment)
	}
	if filter.Criteria != nil {
		cond, err := criteriaSQL(filter.Criteria, "c")
		if err != nil {
			return qb, err
		}
		if cond != nil {
			qb = qb.Where(cond)
		}
	}
	return qb, nil
}

func (repo crmRepository) QueryContacts(ctx context.Context, filter crm.ContactFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.Contact, error) {
	qb, err := filterContacts(selectContacts(), filter)
	if err != nil {
		return nil, err
	}
	qb = qb.OrderBy(orderBy(ordering, contactOrdering, "c.last_name ASC", "c.first_name ASC")...)
	return repo.queryContacts(ctx, repo.getExec(exec), qb)
}

func (repo crmRepository) CountContacts(ctx context.Context, filter crm.ContactFilter, exec ...core.DBExecutor) (int, error) {
	qb, err := filterContacts(psql.Select("c.id").From("contact c"), filter)
	if err != nil {
		return 0, err
	}
	n, err := count(ctx, repo.getExec(exec), qb)
	return n, trapErr(err, "", "counting contacts")
}

// Opportunities

func selectOpportunities() sq.SelectBuilder {
	return psql.Select("o.*", "acc.name AS account_name", "pc.first_name || ' ' || pc.last_name AS primary_contact_name",
		userName("au", "assigned_to_name"), userName("cu", "created_by_name")).
		From("opportunity o").
		Join("account acc ON acc.id = o.account_id").
		LeftJoin("contact pc ON pc.id = o.primary_contact_id").
		LeftJoin(`"user" au ON au.id = o.assigned_to_id`).
		Join(`"user" cu ON cu.id = o.created_by_id`)
}

func (repo crmRepository) queryOpportunities(ctx context.Context, exec core.DBExecutor, qb sq.SelectBuilder) ([]crm.Opportunity, error) {
	opps := make([]crm.Opportunity, 0)
	if err := selectAll(ctx, exec, &opps, qb); err != nil {
		return nil, trapErr(err, "", "querying opportunities")
	}
	ids := make([]string, 0, len(opps))
	for _, o := range opps {
		ids = append(ids, o.ID)
	}
	tags, err := loadTags(ctx, exec, crm.TagOpportunity, ids)
	if err != nil {
		return nil, err
	}
	for i := range opps {
		opps[i].Tags = tags[opps[i].ID]
	}
	return opps, nil
}

func (repo crmRepository) CreateOpportunity(ctx context.Context, o crm.Opportunity, exec ...core.DBExecutor) error {
	return trapErr(insertNamed(ctx, repo.getExec(exec), "opportunity", opportunityCols, o), "opportunity", "inserting opportunity")
}

func (repo crmRepository) UpdateOpportunity(ctx context.Context, o crm.Opportunity, exec ...core.DBExecutor) error {
	n, err := updateNamed(ctx, repo.getExec(exec), "opportunity", opportunityCols[1:], o)
	if err != nil {
		return trapErr(err, "opportunity", "updating opportunity")
	}
	return notFound(n, "opportunity")
}

func (repo crmRepository) DeleteOpportunity(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "opportunity", id)
	if err != nil {
		return trapErr(err, "opportunity", "deleting opportunity")
	}
	return notFound(n, "opportunity")
}

func (repo crmRepository) GetOpportunity(ctx context.Context, id string, exec ...core.DBExecutor) (crm.Opportunity, error) {
	opps, err := repo.queryOpportunities(ctx, repo.getExec(exec), selectOpportunities().Where(sq.Eq{"o.id": id}))
	if err != nil {
		return crm.Opportunity{}, trapErr(err, "opportunity", "finding opportunity")
	}
	if len(opps) == 0 {
		return crm.Opportunity{}, crm.ErrOpportunityNotFound
	}
	return opps[0], nil
}

func (repo crmRepository) QueryOpportunities(ctx context.Context, filter crm.OpportunityFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.Opportunity, error) {
	qb := selectOpportunities()
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "o.name", "o.description", "o.next_step"))
	}
	qb = eqIfSet(qb, map[string]string{
		"o.stage":              filter.Stage,
		"o.account_id":         filter.Account,
		"o.primary_contact_id": filter.PrimaryContact,
		"o.assigned_to_id":     filter.AssignedTo,
	})
	if filter.Tag != "" {
		qb = qb.Where(hasTag(crm.TagOpportunity, "o", filter.Tag))
	}
	qb = qb.OrderBy(orderBy(ordering, opportunityOrdering, "o.expected_close_date DESC")...)
	return repo.queryOpportunities(ctx, repo.getExec(exec), qb)
}

func (repo crmRepository) Pipeline(ctx context.Context, exec ...core.DBExecutor) ([]crm.PipelineStage, error) {
	qb := psql.Select(
		"stage",
		"COUNT(*) AS count",
		"SUM(amount)::text AS total_amount",
		"ROUND(AVG(amount), 2)::text AS avg_amount",
		"ROUND(AVG(probability), 2)::text AS avg_probability",
	).From("opportunity").GroupBy("stage")

	stages := make([]crm.PipelineStage, 0)
	if err := selectAll(ctx, repo.getExec(exec), &stages, qb); err != nil {
		return nil, trapErr(err, "", "computing pipeline")
	}
	return stages, nil
}

package sqlxrepos

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
)

var (
	tagOwners = map[crm.TagOwner]bool{
		crm.TagAccount:       true,
		crm.TagContact:       true,
		crm.TagOpportunity:   true,
		crm.TagCampaign:      true,
		crm.TagSupportTicket: true,
	}

	trees = map[crm.Tree]bool{
		crm.AccountTree: true,
		crm.ContactTree: true,
	}

	// contentTypeTables maps content type keys to the table holding their objects.
	contentTypeTables = map[string]string{
		"crm.account":       "account",
		"crm.contact":       "contact",
		"crm.opportunity":   "opportunity",
		"crm.campaign":      "campaign",
		"crm.supportticket": "support_ticket",
		"crm.segment":       "segment",
		"projects.project":  "project",
		"projects.task":     "task",
	}

	tagOrdering = map[string]string{"name": "name"}
)

type crmRepository struct {
	repository
}

var _ crm.Repository = (*crmRepository)(nil) // interface compliance check

func NewCRMRepository(exec core.DBExecutor) *crmRepository {
	return &crmRepository{repository{exec: exec}}
}

// Tags

func (repo crmRepository) CreateTag(ctx context.Context, t crm.Tag, exec ...core.DBExecutor) (crm.Tag, error) {
	qb := psql.Insert("tag").Columns("name", "color").Values(t.Name, t.Color).Suffix("RETURNING id")
	if err := getOne(ctx, repo.getExec(exec), &t.ID, qb); err != nil {
		return crm.Tag{}, trapErr(err, "tag", "inserting tag")
	}
	return t, nil
}

func (repo crmRepository) UpdateTag(ctx context.Context, t crm.Tag, exec ...core.DBExecutor) (crm.Tag, error) {
	n, err := execQuery(ctx, repo.getExec(exec), psql.Update("tag").
		SetMap(map[string]interface{}{"name": t.Name, "color": t.Color}).
		Where(sq.Eq{"id": t.ID}))
	if err != nil {
		return crm.Tag{}, trapErr(err, "tag", "updating tag")
	}
	return t, notFound(n, "tag")
}

func (repo crmRepository) DeleteTag(ctx context.Context, id int, exec ...core.DBExecutor) error {
	n, err := deleteByID(ctx, repo.getExec(exec), "tag", id)
	if err != nil {
		return trapErr(err, "tag", "deleting tag")
	}
	return notFound(n, "tag")
}

func (repo crmRepository) GetTag(ctx context.Context, id int, exec ...core.DBExecutor) (crm.Tag, error) {
	var t crm.Tag
	err := getOne(ctx, repo.getExec(exec), &t, psql.Select("id", "name", "color").From("tag").Where(sq.Eq{"id": id}))
	return t, trapErr(err, "tag", "finding tag")
}

func (repo crmRepository) QueryTags(ctx context.Context, filter crm.TagFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]crm.Tag, error) {
	qb := psql.Select("id", "name", "color").From("tag")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "name"))
	}
	qb = qb.OrderBy(orderBy(ordering, tagOrdering, "name ASC")...)

	tags := make([]crm.Tag, 0)
	if err := selectAll(ctx, repo.getExec(exec), &tags, qb); err != nil {
		return nil, trapErr(err, "", "querying tags")
	}
	return tags, nil
}

func (repo crmRepository) SetTags(ctx context.Context, owner crm.TagOwner, id string, tagIDs []int, exec ...core.DBExecutor) error {
	return setTags(ctx, repo.getExec(exec), owner, id, tagIDs)
}

func setTags(ctx context.Context, exec core.DBExecutor, owner crm.TagOwner, id string, tagIDs []int) error {
	if !tagOwners[owner] {
		return errors.Errorf("unknown tag owner %q", owner)
	}
	table, col := string(owner)+"_tags", string(owner)+"_id"

	if _, err := execQuery(ctx, exec, psql.Delete(table).Where(sq.Eq{col: id})); err != nil {
		return errors.Wrap(err, "clearing tags")
	}
	if len(tagIDs) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(tagIDs))
	for _, tid := range tagIDs {
		ids = append(ids, int64(tid))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s, tag_id) SELECT $1, UNNEST($2::integer[]) ON CONFLICT DO NOTHING", table, col)
	if _, err := exec.ExecContext(ctx, query, id, pq.Array(ids)); err != nil {
		return trapErr(err, "tag", "setting tags")
	}
	return nil
}

type ownedTag struct {
	OwnerID string `db:"owner_id"`
	crm.Tag
}

// loadTags returns the tags of each owner object, keyed by owner id. Every id gets a non-nil slice.
func loadTags(ctx context.Context, exec core.DBExecutor, owner crm.TagOwner, ids []string) (map[string][]crm.Tag, error) {
	if !tagOwners[owner] {
		return nil, errors.Errorf("unknown tag owner %q", owner)
	}
	tags := make(map[string][]crm.Tag, len(ids))
	for _, id := range ids {
		tags[id] = []crm.Tag{}
	}
	if len(ids) == 0 {
		return tags, nil
	}

	table, col := string(owner)+"_tags", string(owner)+"_id"
	qb := psql.Select("j."+col+" AS owner_id", "t.id", "t.name", "t.color").
		From(table + " j").
		Join("tag t ON t.id = j.tag_id").
		Where("j."+col+" = ANY(?)", pq.Array(ids)).
		OrderBy("t.name")

	var rows []ownedTag
	if err := selectAll(ctx, exec, &rows, qb); err != nil {
		return nil, errors.Wrap(err, "loading tags")
	}
	for _, row := range rows {
		tags[row.OwnerID] = append(tags[row.OwnerID], row.Tag)
	}
	return tags, nil
}

// hasTag is a filter on the tags of the owner rows aliased as alias.
func hasTag(owner crm.TagOwner, alias, tagID string) sq.Sqlizer {
	table, col := string(owner)+"_tags", string(owner)+"_id"
	return sq.Expr(fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s = %s.id AND tag_id = ?)", table, col, alias), tagID)
}

// Content types

func (repo crmRepository) QueryContentTypes(ctx context.Context, filter crm.ContentTypeFilter, exec ...core.DBExecutor) ([]crm.ContentType, error) {
	qb := psql.Select("id", "app_label", "model").From("content_type").OrderBy("app_label", "model")
	if filter.Search != "" {
		qb = qb.Where(search(filter.Search, "app_label", "model"))
	}
	qb = eqIfSet(qb, map[string]string{"app_label": filter.AppLabel, "model": filter.Model})

	cts := make([]crm.ContentType, 0)
	if err := selectAll(ctx, repo.getExec(exec), &cts, qb); err != nil {
		return nil, trapErr(err, "", "querying content types")
	}
	return cts, nil
}

func (repo crmRepository) GetContentType(ctx context.Context, id int, exec ...core.DBExecutor) (crm.ContentType, error) {
	var ct crm.ContentType
	err := getOne(ctx, repo.getExec(exec), &ct, psql.Select("id", "app_label", "model").From("content_type").Where(sq.Eq{"id": id}))
	return ct, trapErr(err, "content type", "finding content type")
}

func (repo crmRepository) GetContentTypeByModel(ctx context.Context, appLabel, model string, exec ...core.DBExecutor) (crm.ContentType, error) {
	var ct crm.ContentType
	err := getOne(ctx, repo.getExec(exec), &ct, psql.Select("id", "app_label", "model").From("content_type").
		Where(sq.Eq{"app_label": appLabel, "model": model}))
	return ct, trapErr(err, "content type", "finding content type")
}

func (repo crmRepository) ObjectExists(ctx context.Context, ct crm.ContentType, objectID string, exec ...core.DBExecutor) (bool, error) {
	table, ok := contentTypeTables[ct.Key()]
	if !ok {
		return false, nil
	}
	var found bool
	qb := psql.Select().Column(sq.Expr(fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE id = ?)", table), objectID))
	if err := getOne(ctx, repo.getExec(exec), &found, qb); err != nil {
		return false, errors.Wrap(err, "checking object existence")
	}
	return found, nil
}

// Trees

func treeTable(tree crm.Tree) (string, error) {
	if !trees[tree] {
		return "", errors.Errorf("unknown tree %q", tree)
	}
	return string(tree), nil
}

func (repo crmRepository) LockTree(ctx context.Context, tree crm.Tree, exec core.DBExecutor) error {
	table, err := treeTable(tree)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "tree:"+table)
	return errors.Wrap(err, "locking tree")
}

func (repo crmRepository) TreeLevel(ctx context.Context, tree crm.Tree, id string, exec ...core.DBExecutor) (int, error) {
	table, err := treeTable(tree)
	if err != nil {
		return 0, err
	}
	var level int
	err = getOne(ctx, repo.getExec(exec), &level, psql.Select("level").From(table).Where(sq.Eq{"id": id}).Suffix("FOR SHARE"))
	return level, trapErr(err, table, "finding tree level")
}

func (repo crmRepository) IsDescendant(ctx context.Context, tree crm.Tree, ancestorID, id string, exec ...core.DBExecutor) (bool, error) {
	table, err := treeTable(tree)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`WITH RECURSIVE sub AS (
		SELECT id FROM %[1]s WHERE id = $1
		UNION
		SELECT c.id FROM %[1]s c JOIN sub ON c.parent_id = sub.id
	)
	SELECT EXISTS (SELECT 1 FROM sub WHERE id = $2)`, table)

	var found bool
	if err = repo.getExec(exec).QueryRowxContext(ctx, query, ancestorID, id).Scan(&found); err != nil {
		return false, errors.Wrap(err, "checking descendants")
	}
	return found, nil
}

func (repo crmRepository) RefreshTreeLevels(ctx context.Context, tree crm.Tree, id string, exec ...core.DBExecutor) error {
	table, err := treeTable(tree)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`WITH RECURSIVE sub AS (
		SELECT id, level FROM %[1]s WHERE id = $1
		UNION ALL
		SELECT c.id, sub.level + 1 FROM %[1]s c JOIN sub ON c.parent_id = sub.id
	)
	UPDATE %[1]s t SET level = sub.level FROM sub WHERE t.id = sub.id AND t.level <> sub.level`, table)

	_, err = repo.getExec(exec).ExecContext(ctx, query, id)
	return errors.Wrap(err, "refreshing tree levels")
}

// subtree selects the ids below id (excluding id).
func subtree(table string) string {
	return fmt.Sprintf(`WITH RECURSIVE sub AS (
		SELECT id FROM %[1]s WHERE parent_id = ?
		UNION
		SELECT c.id FROM %[1]s c JOIN sub ON c.parent_id = sub.id
	) SELECT id FROM sub`, table)
}

// ancestry selects the ids above id (excluding id).
func ancestry(table string) string {
	return fmt.Sprintf(`WITH RECURSIVE sub AS (
		SELECT parent_id AS id FROM %[1]s WHERE id = ?
		UNION
		SELECT p.parent_id FROM %[1]s p JOIN sub ON p.id = sub.id
	) SELECT id FROM sub WHERE id IS NOT NULL`, table)
}

package crm

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eventuais/eventuais/core"
)

// AppLabel is the app label of the crm content types.
const AppLabel = "crm"

// seeded content types
const (
	ContentTypeAccount       = 1
	ContentTypeContact       = 2
	ContentTypeOpportunity   = 3
	ContentTypeCampaign      = 4
	ContentTypeSupportTicket = 5
	ContentTypeSegment       = 6
	ContentTypeProject       = 7
	ContentTypeTask          = 8
)

// Tree names a self-referencing hierarchy.
type Tree string

const (
	AccountTree Tree = "account"
	ContactTree Tree = "contact"
)

var treeCycleTexts = map[Tree]string{
	AccountTree: "an account cannot be its own ancestor",
	ContactTree: "a contact cannot be its own ancestor",
}

// TagOwner names a taggable model.
type TagOwner string

const (
	TagAccount       TagOwner = "account"
	TagContact       TagOwner = "contact"
	TagOpportunity   TagOwner = "opportunity"
	TagCampaign      TagOwner = "campaign"
	TagSupportTicket TagOwner = "support_ticket"
)

var (
	ErrTagNotFound              = core.NewNotFoundError("tag")
	ErrContentTypeNotFound      = core.NewNotFoundError("content type")
	ErrActivityNotFound         = core.NewNotFoundError("activity")
	ErrCustomFieldNotFound      = core.NewNotFoundError("custom field")
	ErrCustomFieldValueNotFound = core.NewNotFoundError("custom field value")
	ErrSocialProfileNotFound    = core.NewNotFoundError("social profile")
	ErrAccountNotFound          = core.NewNotFoundError("account")
	ErrContactNotFound          = core.NewNotFoundError("contact")
	ErrOpportunityNotFound      = core.NewNotFoundError("opportunity")
)

type (
	TagRepository interface {
		CreateTag(ctx context.Context, t Tag, exec ...core.DBExecutor) (Tag, error)
		UpdateTag(ctx context.Context, t Tag, exec ...core.DBExecutor) (Tag, error)
		DeleteTag(ctx context.Context, id int, exec ...core.DBExecutor) error
		GetTag(ctx context.Context, id int, exec ...core.DBExecutor) (Tag, error)
		QueryTags(ctx context.Context, filter TagFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Tag, error)
		// SetTags replaces the tags of the owner object.
		SetTags(ctx context.Context, owner TagOwner, id string, tagIDs []int, exec ...core.DBExecutor) error
	}

	ContentTypeRepository interface {
		QueryContentTypes(ctx context.Context, filter ContentTypeFilter, exec ...core.DBExecutor) ([]ContentType, error)
		GetContentType(ctx context.Context, id int, exec ...core.DBExecutor) (ContentType, error)
		GetContentTypeByModel(ctx context.Context, appLabel, model string, exec ...core.DBExecutor) (ContentType, error)
		// ObjectExists reports whether objectID is a row of the model ct points to.
		ObjectExists(ctx context.Context, ct ContentType, objectID string, exec ...core.DBExecutor) (bool, error)
	}

	ActivityRepository interface {
		CreateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) error
		UpdateActivity(ctx context.Context, a Activity, exec ...core.DBExecutor) error
		DeleteActivity(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetActivity(ctx context.Context, id string, exec ...core.DBExecutor) (Activity, error)
		QueryActivities(ctx context.Context, filter ActivityFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Activity, error)
	}

	CustomFieldRepository interface {
		CreateCustomField(ctx context.Context, cf CustomField, exec ...core.DBExecutor) error
		UpdateCustomField(ctx context.Context, cf CustomField, exec ...core.DBExecutor) error
		DeleteCustomField(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetCustomField(ctx context.Context, id string, exec ...core.DBExecutor) (CustomField, error)
		QueryCustomFields(ctx context.Context, filter CustomFieldFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]CustomField, error)

		CreateCustomFieldValue(ctx context.Context, v CustomFieldValue, exec ...core.DBExecutor) error
		UpdateCustomFieldValue(ctx context.Context, v CustomFieldValue, exec ...core.DBExecutor) error
		DeleteCustomFieldValue(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetCustomFieldValue(ctx context.Context, id string, exec ...core.DBExecutor) (CustomFieldValue, error)
		QueryCustomFieldValues(ctx context.Context, filter CustomFieldValueFilter, exec ...core.DBExecutor) ([]CustomFieldValue, error)
	}

	SocialProfileRepository interface {
		CreateSocialProfile(ctx context.Context, sp SocialProfile, exec ...core.DBExecutor) error
		UpdateSocialProfile(ctx context.Context, sp SocialProfile, exec ...core.DBExecutor) error
		DeleteSocialProfile(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetSocialProfile(ctx context.Context, id string, exec ...core.DBExecutor) (SocialProfile, error)
		QuerySocialProfiles(ctx context.Context, filter SocialProfileFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]SocialProfile, error)
	}

	TreeRepository interface {
		// LockTree serializes changes to the shape of tree until the transaction ends.
		LockTree(ctx context.Context, tree Tree, exec core.DBExecutor) error
		// TreeLevel returns the level of node id.
		TreeLevel(ctx context.Context, tree Tree, id string, exec ...core.DBExecutor) (int, error)
		// IsDescendant reports whether id is ancestorID or one of its descendants.
		IsDescendant(ctx context.Context, tree Tree, ancestorID, id string, exec ...core.DBExecutor) (bool, error)
		// RefreshTreeLevels recomputes the levels of the subtree rooted at id.
		RefreshTreeLevels(ctx context.Context, tree Tree, id string, exec ...core.DBExecutor) error
	}

	AccountRepository interface {
		CreateAccount(ctx context.Context, a Account, exec ...core.DBExecutor) error
		UpdateAccount(ctx context.Context, a Account, exec ...core.DBExecutor) error
		DeleteAccount(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetAccount(ctx context.Context, id string, exec ...core.DBExecutor) (Account, error)
		QueryAccounts(ctx context.Context, filter AccountFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Account, error)
		AccountAncestors(ctx context.Context, id string, exec ...core.DBExecutor) ([]Account, error)
		AccountDescendants(ctx context.Context, id string, exec ...core.DBExecutor) ([]Account, error)
	}

	ContactRepository interface {
		CreateContact(ctx context.Context, c Contact, exec ...core.DBExecutor) error
		UpdateContact(ctx context.Context, c Contact, exec ...core.DBExecutor) error
		DeleteContact(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetContact(ctx context.Context, id string, exec ...core.DBExecutor) (Contact, error)
		QueryContacts(ctx context.Context, filter ContactFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Contact, error)
		CountContacts(ctx context.Context, filter ContactFilter, exec ...core.DBExecutor) (int, error)
	}

	OpportunityRepository interface {
		CreateOpportunity(ctx context.Context, o Opportunity, exec ...core.DBExecutor) error
		UpdateOpportunity(ctx context.Context, o Opportunity, exec ...core.DBExecutor) error
		DeleteOpportunity(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetOpportunity(ctx context.Context, id string, exec ...core.DBExecutor) (Opportunity, error)
		QueryOpportunities(ctx context.Context, filter OpportunityFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Opportunity, error)
		Pipeline(ctx context.Context, exec ...core.DBExecutor) ([]PipelineStage, error)
	}

	Repository interface {
		TagRepository
		ContentTypeRepository
		ActivityRepository
		CustomFieldRepository
		SocialProfileRepository
		TreeRepository
		AccountRepository
		ContactRepository
		OpportunityRepository
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(db core.DB, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate}
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Tags

func (svc *Service) CreateTag(ctx context.Context, in TagInput) (Tag, error) {
	var t Tag
	in.Apply(&t)
	if err := svc.validate.Struct(t); err != nil {
		return Tag{}, err
	}
	return svc.repo.CreateTag(ctx, t)
}

func (svc *Service) UpdateTag(ctx context.Context, t Tag, in TagInput) (Tag, error) {
	in.Apply(&t)
	if err := svc.validate.Struct(t); err != nil {
		return Tag{}, err
	}
	return svc.repo.UpdateTag(ctx, t)
}

func (svc *Service) DeleteTag(ctx context.Context, id int) error {
	return svc.repo.DeleteTag(ctx, id)
}

func (svc *Service) GetTag(ctx context.Context, id int) (Tag, error) {
	return svc.repo.GetTag(ctx, id)
}

func (svc *Service) QueryTags(ctx context.Context, filter TagFilter, ordering []core.DBOrdering) ([]Tag, error) {
	return svc.repo.QueryTags(ctx, filter, ordering)
}

// Content types

func (svc *Service) QueryContentTypes(ctx context.Context, filter ContentTypeFilter) ([]ContentType, error) {
	return svc.repo.QueryContentTypes(ctx, filter)
}

func (svc *Service) GetContentType(ctx context.Context, id int) (ContentType, error) {
	return svc.repo.GetContentType(ctx, id)
}

func (svc *Service) GetContentTypeByModel(ctx context.Context, appLabel, model string) (ContentType, error) {
	return svc.repo.GetContentTypeByModel(ctx, appLabel, model)
}

// CheckObjectRef validates a generic relation: the content type and the object must exist.
func (svc *Service) CheckObjectRef(ctx context.Context, contentTypeID int, objectID string, exec ...core.DBExecutor) error {
	ct, err := svc.repo.GetContentType(ctx, contentTypeID, exec...)
	if err != nil {
		if core.IsNotFound(err) {
			return core.InvalidRefError("content_type")
		}
		return errors.Wrap(err, "finding content type")
	}
	if !validUUID(objectID) {
		return core.InvalidRefError("object_id")
	}
	ok, err := svc.repo.ObjectExists(ctx, ct, objectID, exec...)
	if err != nil {
		return errors.Wrap(err, "checking object")
	}
	if !ok {
		return core.InvalidRefError("object_id")
	}
	return nil
}

// Activities

func (svc *Service) CreateActivity(ctx context.Context, userID string, in ActivityInput) (Activity, error) {
	now := core.Now()
	a := Activity{
		ID:            uuid.NewString(),
		StartDate:     now,
		PerformedByID: userID,
		CreatedByID:   userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	in.Apply(&a)
	if a.IsCompleted && !a.CompletionDate.Valid {
		a.CompletionDate = null.TimeFrom(now)
	}
	if err := svc.validate.Struct(a); err != nil {
		return Activity{}, err
	}
	if err := svc.CheckObjectRef(ctx, a.ContentTypeID, a.ObjectID); err != nil {
		return Activity{}, err
	}
	if err := svc.repo.CreateActivity(ctx, a); err != nil {
		return Activity{}, err
	}
	return svc.repo.GetActivity(ctx, a.ID)
}

func (svc *Service) UpdateActivity(ctx context.Context, a Activity, in ActivityInput) (Activity, error) {
	wasCompleted := a.IsCompleted
	in.Apply(&a)
	if !wasCompleted && a.IsCompleted && !a.CompletionDate.Valid {
		a.CompletionDate = null.TimeFrom(core.Now())
	}
	if err := svc.validate.Struct(a); err != nil {
		return Activity{}, err
	}
	if in.ContentTypeID != nil || in.ObjectID != nil {
		if err := svc.CheckObjectRef(ctx, a.ContentTypeID, a.ObjectID); err != nil {
			return Activity{}, err
		}
	}
	a.UpdatedAt = core.Now()
	if err := svc.repo.UpdateActivity(ctx, a); err != nil {
		return Activity{}, err
	}
	return svc.repo.GetActivity(ctx, a.ID)
}

func (svc *Service) DeleteActivity(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrActivityNotFound
	}
	return svc.repo.DeleteActivity(ctx, id)
}

func (svc *Service) GetActivity(ctx context.Context, id string) (Activity, error) {
	if !validUUID(id) {
		return Activity{}, ErrActivityNotFound
	}
	return svc.repo.GetActivity(ctx, id)
}

func (svc *Service) QueryActivities(ctx context.Context, filter ActivityFilter, ordering []core.DBOrdering) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, filter, ordering)
}

// OverdueActivities lists the pending activities past their due date.
func (svc *Service) OverdueActivities(ctx context.Context, filter ActivityFilter, ordering []core.DBOrdering) ([]Activity, error) {
	completed := false
	filter.IsCompleted = &completed
	filter.DueBefore = core.Now()
	return svc.repo.QueryActivities(ctx, filter, ordering)
}

// Custom fields

func (svc *Service) validateCustomField(ctx context.Context, cf CustomField) error {
	if err := svc.validate.Struct(cf); err != nil {
		return err
	}
	if _, err := svc.repo.GetContentType(ctx, cf.ContentTypeID); err != nil {
		if core.IsNotFound(err) {
			return core.InvalidRefError("content_type")
		}
		return errors.Wrap(err, "finding content type")
	}
	return validateCustomField(cf)
}

func (svc *Service) CreateCustomField(ctx context.Context, in CustomFieldInput) (CustomField, error) {
	now := core.Now()
	cf := CustomField{ID: uuid.NewString(), FieldType: FieldText, CreatedAt: now, UpdatedAt: now}
	in.Apply(&cf)
	if err := svc.validateCustomField(ctx, cf); err != nil {
		return CustomField{}, err
	}
	if err := svc.repo.CreateCustomField(ctx, cf); err != nil {
		return CustomField{}, err
	}
	return svc.repo.GetCustomField(ctx, cf.ID)
}

func (svc *Service) UpdateCustomField(ctx context.Context, cf CustomField, in CustomFieldInput) (CustomField, error) {
	in.Apply(&cf)
	if err := svc.validateCustomField(ctx, cf); err != nil {
		return CustomField{}, err
	}
	cf.UpdatedAt = core.Now()
	if err := svc.repo.UpdateCustomField(ctx, cf); err != nil {
		return CustomField{}, err
	}
	return svc.repo.GetCustomField(ctx, cf.ID)
}

func (svc *Service) DeleteCustomField(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrCustomFieldNotFound
	}
	return svc.repo.DeleteCustomField(ctx, id)
}

func (svc *Service) GetCustomField(ctx context.Context, id string) (CustomField, error) {
	if !validUUID(id) {
		return CustomField{}, ErrCustomFieldNotFound
	}
	return svc.repo.GetCustomField(ctx, id)
}

func (svc *Service) QueryCustomFields(ctx context.Context, filter CustomFieldFilter, ordering []core.DBOrdering) ([]CustomField, error) {
	return svc.repo.QueryCustomFields(ctx, filter, ordering)
}

// CustomFieldsForModel lists the custom fields defined for the model appLabel.model.
func (svc *Service) CustomFieldsForModel(ctx context.Context, appLabel, model string) ([]CustomField, error) {
	ct, err := svc.repo.GetContentTypeByModel(ctx, appLabel, model)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryCustomFields(ctx, CustomFieldFilter{ContentType: itoa(ct.ID)}, nil)
}

func (svc *Service) validateCustomFieldValue(ctx context.Context, v CustomFieldValue) error {
	if err := svc.validate.Struct(v); err != nil {
		return err
	}
	field, err := svc.repo.GetCustomField(ctx, v.FieldID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.InvalidRefError("field")
		}
		return errors.Wrap(err, "finding custom field")
	}
	if field.ContentTypeID != v.ContentTypeID {
		return core.NewFieldError("content_type", "content type does not match the field's content type")
	}
	if err := svc.CheckObjectRef(ctx, v.ContentTypeID, v.ObjectID); err != nil {
		return err
	}
	return ValidateFieldValue(field, v.Value)
}

func (svc *Service) CreateCustomFieldValue(ctx context.Context, in CustomFieldValueInput) (CustomFieldValue, error) {
	now := core.Now()
	v := CustomFieldValue{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.Apply(&v)
	if err := svc.validateCustomFieldValue(ctx, v); err != nil {
		return CustomFieldValue{}, err
	}
	if err := svc.repo.CreateCustomFieldValue(ctx, v); err != nil {
		return CustomFieldValue{}, err
	}
	return svc.repo.GetCustomFieldValue(ctx, v.ID)
}

func (svc *Service) UpdateCustomFieldValue(ctx context.Context, v CustomFieldValue, in CustomFieldValueInput) (CustomFieldValue, error) {
	in.Apply(&v)
	if err := svc.validateCustomFieldValue(ctx, v); err != nil {
		return CustomFieldValue{}, err
	}
	v.UpdatedAt = core.Now()
	if err := svc.repo.UpdateCustomFieldValue(ctx, v); err != nil {
		return CustomFieldValue{}, err
	}
	return svc.repo.GetCustomFieldValue(ctx, v.ID)
}

func (svc *Service) DeleteCustomFieldValue(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrCustomFieldValueNotFound
	}
	return svc.repo.DeleteCustomFieldValue(ctx, id)
}

func (svc *Service) GetCustomFieldValue(ctx context.Context, id string) (CustomFieldValue, error) {
	if !validUUID(id) {
		return CustomFieldValue{}, ErrCustomFieldValueNotFound
	}
	return svc.repo.GetCustomFieldValue(ctx, id)
}

func (svc *Service) QueryCustomFieldValues(ctx context.Context, filter CustomFieldValueFilter) ([]CustomFieldValue, error) {
	return svc.repo.QueryCustomFieldValues(ctx, filter)
}

// Social profiles

func (svc *Service) validateSocialProfile(ctx context.Context, sp SocialProfile) error {
	if err := svc.validate.Struct(sp); err != nil {
		return err
	}
	return svc.CheckObjectRef(ctx, sp.ContentTypeID, sp.ObjectID)
}

func (svc *Service) CreateSocialProfile(ctx context.Context, in SocialProfileInput) (SocialProfile, error) {
	now := core.Now()
	sp := SocialProfile{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.Apply(&sp)
	if err := svc.validateSocialProfile(ctx, sp); err != nil {
		return SocialProfile{}, err
	}
	if err := svc.repo.CreateSocialProfile(ctx, sp); err != nil {
		return SocialProfile{}, err
	}
	return sp, nil
}

func (svc *Service) UpdateSocialProfile(ctx context.Context, sp SocialProfile, in SocialProfileInput) (SocialProfile, error) {
	in.Apply(&sp)
	if err := svc.validateSocialProfile(ctx, sp); err != nil {
		return SocialProfile{}, err
	}
	sp.UpdatedAt = core.Now()
	if err := svc.repo.UpdateSocialProfile(ctx, sp); err != nil {
		return SocialProfile{}, err
	}
	return sp, nil
}

func (svc *Service) DeleteSocialProfile(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrSocialProfileNotFound
	}
	return svc.repo.DeleteSocialProfile(ctx, id)
}

func (svc *Service) GetSocialProfile(ctx context.Context, id string) (SocialProfile, error) {
	if !validUUID(id) {
		return SocialProfile{}, ErrSocialProfileNotFound
	}
	return svc.repo.GetSocialProfile(ctx, id)
}

func (svc *Service) QuerySocialProfiles(ctx context.Context, filter SocialProfileFilter, ordering []core.DBOrdering) ([]SocialProfile, error) {
	return svc.repo.QuerySocialProfiles(ctx, filter, ordering)
}

// Trees

// placeInTree returns the level of a node under parentID, rejecting cycles.
func (svc *Service) placeInTree(ctx context.Context, tree Tree, id string, parentID null.String, exec core.DBExecutor) (int, error) {
	if !parentID.Valid {
		return 0, nil
	}
	cycleErr := core.NewFieldError("parent", treeCycleTexts[tree])
	if parentID.String == id {
		return 0, cycleErr
	}
	if !validUUID(parentID.String) {
		return 0, core.InvalidRefError("parent")
	}
	if err := svc.repo.LockTree(ctx, tree, exec); err != nil {
		return 0, err
	}
	isDesc, err := svc.repo.IsDescendant(ctx, tree, id, parentID.String, exec)
	if err != nil {
		return 0, errors.Wrap(err, "checking tree cycle")
	}
	if isDesc {
		return 0, cycleErr
	}
	level, err := svc.repo.TreeLevel(ctx, tree, parentID.String, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return 0, core.InvalidRefError("parent")
		}
		return 0, errors.Wrap(err, "finding parent level")
	}
	return level + 1, nil
}

// Accounts

func (svc *Service) CreateAccount(ctx context.Context, userID string, in AccountInput) (Account, error) {
	now := core.Now()
	acc := Account{
		ID:          uuid.NewString(),
		AccountType: "customer",
		CreatedByID: userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	in.Apply(&acc)
	if err := svc.validate.Struct(acc); err != nil {
		return Account{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		level, err := svc.placeInTree(ctx, AccountTree, acc.ID, acc.ParentID, tx)
		if err != nil {
			return err
		}
		acc.Level = level
		if err = svc.repo.CreateAccount(ctx, acc, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetTags(ctx, TagAccount, acc.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return svc.repo.GetAccount(ctx, acc.ID)
}

func (svc *Service) UpdateAccount(ctx context.Context, acc Account, in AccountInput) (Account, error) {
	in.Apply(&acc)
	if err := svc.validate.Struct(acc); err != nil {
		return Account{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		level, err := svc.placeInTree(ctx, AccountTree, acc.ID, acc.ParentID, tx)
		if err != nil {
			return err
		}
		levelChanged := level != acc.Level
		acc.Level = level
		acc.UpdatedAt = core.Now()
		if err = svc.repo.UpdateAccount(ctx, acc, tx); err != nil {
			return err
		}
		if levelChanged {
			if err = svc.repo.RefreshTreeLevels(ctx, AccountTree, acc.ID, tx); err != nil {
				return err
			}
		}
		if in.TagIDs != nil {
			return svc.repo.SetTags(ctx, TagAccount, acc.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return svc.repo.GetAccount(ctx, acc.ID)
}

// DeleteAccount deletes the account with its subtree.
func (svc *Service) DeleteAccount(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrAccountNotFound
	}
	return svc.repo.DeleteAccount(ctx, id)
}

func (svc *Service) GetAccount(ctx context.Context, id string) (Account, error) {
	if !validUUID(id) {
		return Account{}, ErrAccountNotFound
	}
	return svc.repo.GetAccount(ctx, id)
}

func (svc *Service) GetAccountDetail(ctx context.Context, acc Account) (AccountDetail, error) {
	var err error
	d := AccountDetail{Account: acc}
	if d.Contacts, err = svc.repo.QueryContacts(ctx, ContactFilter{Account: acc.ID}, nil); err != nil {
		return AccountDetail{}, err
	}
	if d.Opportunities, err = svc.repo.QueryOpportunities(ctx, OpportunityFilter{Account: acc.ID}, nil); err != nil {
		return AccountDetail{}, err
	}
	if d.Activities, err = svc.ObjectActivities(ctx, ContentTypeAccount, acc.ID); err != nil {
		return AccountDetail{}, err
	}
	if d.SocialProfiles, err = svc.ObjectSocialProfiles(ctx, ContentTypeAccount, acc.ID); err != nil {
		return AccountDetail{}, err
	}
	return d, nil
}

func (svc *Service) QueryAccounts(ctx context.Context, filter AccountFilter, ordering []core.DBOrdering) ([]Account, error) {
	return svc.repo.QueryAccounts(ctx, filter, ordering)
}

func (svc *Service) AccountChildren(ctx context.Context, id string) ([]Account, error) {
	return svc.repo.QueryAccounts(ctx, AccountFilter{Parent: id}, nil)
}

// AccountAncestors lists the ancestors of an account, root first.
func (svc *Service) AccountAncestors(ctx context.Context, id string) ([]Account, error) {
	return svc.repo.AccountAncestors(ctx, id)
}

// AccountDescendants lists the whole subtree below an account.
func (svc *Service) AccountDescendants(ctx context.Context, id string) ([]Account, error) {
	return svc.repo.AccountDescendants(ctx, id)
}

// ObjectActivities lists the activities attached to an object.
func (svc *Service) ObjectActivities(ctx context.Context, contentTypeID int, objectID string) ([]Activity, error) {
	return svc.repo.QueryActivities(ctx, ActivityFilter{ContentType: itoa(contentTypeID), ObjectID: objectID}, nil)
}

func (svc *Service) ObjectSocialProfiles(ctx context.Context, contentTypeID int, objectID string) ([]SocialProfile, error) {
	return svc.repo.QuerySocialProfiles(ctx, SocialProfileFilter{ContentType: itoa(contentTypeID), ObjectID: objectID}, nil)
}

// Contacts

func (svc *Service) CreateContact(ctx context.Context, userID string, in ContactInput) (Contact, error) {
	now := core.Now()
	c := Contact{
		ID:                uuid.NewString(),
		Status:            "active",
		UseAccountAddress: true,
		CreatedByID:       userID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	in.Apply(&c)
	if err := svc.validate.Struct(c); err != nil {
		return Contact{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		level, err := svc.placeInTree(ctx, ContactTree, c.ID, c.ParentID, tx)
		if err != nil {
			return err
		}
		c.Level = level
		if err = svc.repo.CreateContact(ctx, c, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetTags(ctx, TagContact, c.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Contact{}, err
	}
	return svc.repo.GetContact(ctx, c.ID)
}

func (svc *Service) UpdateContact(ctx context.Context, c Contact, in ContactInput) (Contact, error) {
	in.Apply(&c)
	if err := svc.validate.Struct(c); err != nil {
		return Contact{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		level, err := svc.placeInTree(ctx, ContactTree, c.ID, c.ParentID, tx)
		if err != nil {
			return err
		}
		levelChanged := level != c.Level
		c.Level = level
		c.UpdatedAt = core.Now()
		if err = svc.repo.UpdateContact(ctx, c, tx); err != nil {
			return err
		}
		if levelChanged {
			if err = svc.repo.RefreshTreeLevels(ctx, ContactTree, c.ID, tx); err != nil {
				return err
			}
		}
		if in.TagIDs != nil {
			return svc.repo.SetTags(ctx, TagContact, c.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Contact{}, err
	}
	return svc.repo.GetContact(ctx, c.ID)
}

func (svc *Service) DeleteContact(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrContactNotFound
	}
	return svc.repo.DeleteContact(ctx, id)
}

func (svc *Service) GetContact(ctx context.Context, id string) (Contact, error) {
	if !validUUID(id) {
		return Contact{}, ErrContactNotFound
	}
	return svc.repo.GetContact(ctx, id)
}

func (svc *Service) GetContactDetail(ctx context.Context, c Contact) (ContactDetail, error) {
	var err error
	d := ContactDetail{Contact: c}
	if d.Opportunities, err = svc.repo.QueryOpportunities(ctx, OpportunityFilter{PrimaryContact: c.ID}, nil); err != nil {
		return ContactDetail{}, err
	}
	if d.Activities, err = svc.ObjectActivities(ctx, ContentTypeContact, c.ID); err != nil {
		return ContactDetail{}, err
	}
	if d.SocialProfiles, err = svc.ObjectSocialProfiles(ctx, ContentTypeContact, c.ID); err != nil {
		return ContactDetail{}, err
	}
	return d, nil
}

func (svc *Service) QueryContacts(ctx context.Context, filter ContactFilter, ordering []core.DBOrdering) ([]Contact, error) {
	return svc.repo.QueryContacts(ctx, filter, ordering)
}

func (svc *Service) CountContacts(ctx context.Context, filter ContactFilter) (int, error) {
	return svc.repo.CountContacts(ctx, filter)
}

// ContactSubordinates lists the contacts reporting directly to a contact.
func (svc *Service) ContactSubordinates(ctx context.Context, id string) ([]Contact, error) {
	return svc.repo.QueryContacts(ctx, ContactFilter{Parent: id}, nil)
}

// Opportunities

func (svc *Service) CreateOpportunity(ctx context.Context, userID string, in OpportunityInput) (Opportunity, error) {
	now := core.Now()
	o := Opportunity{
		ID:          uuid.NewString(),
		Stage:       "prospecting",
		CreatedByID: userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	in.Apply(&o)
	if err := svc.validate.Struct(o); err != nil {
		return Opportunity{}, err
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateOpportunity(ctx, o, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetTags(ctx, TagOpportunity, o.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Opportunity{}, err
	}
	return svc.repo.GetOpportunity(ctx, o.ID)
}

func (svc *Service) UpdateOpportunity(ctx context.Context, o Opportunity, in OpportunityInput) (Opportunity, error) {
	in.Apply(&o)
	if err := svc.validate.Struct(o); err != nil {
		return Opportunity{}, err
	}
	o.UpdatedAt = core.Now()

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.UpdateOpportunity(ctx, o, tx); err != nil {
			return err
		}
		if in.TagIDs != nil {
			return svc.repo.SetTags(ctx, TagOpportunity, o.ID, *in.TagIDs, tx)
		}
		return nil
	})
	if err != nil {
		return Opportunity{}, err
	}
	return svc.repo.GetOpportunity(ctx, o.ID)
}

func (svc *Service) DeleteOpportunity(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrOpportunityNotFound
	}
	return svc.repo.DeleteOpportunity(ctx, id)
}

func (svc *Service) GetOpportunity(ctx context.Context, id string) (Opportunity, error) {
	if !validUUID(id) {
		return Opportunity{}, ErrOpportunityNotFound
	}
	return svc.repo.GetOpportunity(ctx, id)
}

func (svc *Service) QueryOpportunities(ctx context.Context, filter OpportunityFilter, ordering []core.DBOrdering) ([]Opportunity, error) {
	return svc.repo.QueryOpportunities(ctx, filter, ordering)
}

// Pipeline summarizes opportunities per stage, in pipeline order.
func (svc *Service) Pipeline(ctx context.Context) ([]PipelineStage, error) {
	stages, err := svc.repo.Pipeline(ctx)
	if err != nil {
		return nil, err
	}
	SortPipeline(stages)
	return stages, nil
}

func SortPipeline(stages []PipelineStage) {
	sort.SliceStable(stages, func(i, j int) bool {
		return OpportunityStages.Index(stages[i].Stage) < OpportunityStages.Index(stages[j].Stage)
	})
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/volatiletech/null/v8"
	"gopkg.in/yaml.v3"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/project"
	"github.com/eventuais/eventuais/core/user"
)

type (
	// fixtures is the layout of a loaddata file. Sections are loaded in field order,
	// so parents and referenced users must appear earlier in the file.
	fixtures struct {
		Users          []userFixture           `yaml:"users"`
		Tags           []crm.Tag               `yaml:"tags"`
		Accounts       []accountFixture        `yaml:"accounts"`
		Contacts       []contactFixture        `yaml:"contacts"`
		Projects       []projectFixture        `yaml:"projects"`
		Equipment      []equipmentFixture      `yaml:"equipment"`
		Crew           []crewFixture           `yaml:"crew"`
		Transportation []transportationFixture `yaml:"transportation"`
	}

	userFixture struct {
		ID       string   `yaml:"id"`
		Name     string   `yaml:"name"`
		Username string   `yaml:"username"`
		Email    string   `yaml:"email"`
		Password string   `yaml:"password"`
		Roles    []string `yaml:"roles"`
		Inactive bool     `yaml:"inactive"`
	}

	addressFixture struct {
		AddressLine1 string `yaml:"address_line1"`
		City         string `yaml:"city"`
		State        string `yaml:"state"`
		PostalCode   string `yaml:"postal_code"`
		Country      string `yaml:"country"`
	}

	accountFixture struct {
		ID             string   `yaml:"id"`
		Name           string   `yaml:"name"`
		AccountType    string   `yaml:"account_type"`
		Industry       string   `yaml:"industry"`
		Parent         string   `yaml:"parent"`
		Website        string   `yaml:"website"`
		Email          string   `yaml:"email"`
		Phone          string   `yaml:"phone"`
		addressFixture `yaml:",inline"`
		CreatedBy      string   `yaml:"created_by"`
		Tags           []string `yaml:"tags"`
	}

	contactFixture struct {
		ID             string   `yaml:"id"`
		FirstName      string   `yaml:"first_name"`
		LastName       string   `yaml:"last_name"`
		Title          string   `yaml:"title"`
		Email          string   `yaml:"email"`
		Phone          string   `yaml:"phone"`
		Account        string   `yaml:"account"`
		Parent         string   `yaml:"parent"`
		Status         string   `yaml:"status"`
		EmailOptOut    bool     `yaml:"email_opt_out"`
		addressFixture `yaml:",inline"`
		CreatedBy      string   `yaml:"created_by"`
		Tags           []string `yaml:"tags"`
	}

	projectFixture struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		StartDate   string `yaml:"start_date"`
		EndDate     string `yaml:"end_date"`
		Status      string `yaml:"status"`
	}

	resourceFixture struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	}

	equipmentFixture struct {
		resourceFixture `yaml:",inline"`
		ModelNumber     string `yaml:"model_number"`
		Category        string `yaml:"category"`
	}

	crewFixture struct {
		resourceFixture `yaml:",inline"`
		Role            string `yaml:"role"`
		Skills          string `yaml:"skills"`
	}

	transportationFixture struct {
		resourceFixture `yaml:",inline"`
		VehicleType     string `yaml:"vehicle_type"`
		Capacity        int    `yaml:"capacity"`
	}
)

func (af addressFixture) address() crm.Address {
	return crm.Address{
		AddressLine1: af.AddressLine1,
		City:         af.City,
		State:        af.State,
		PostalCode:   af.PostalCode,
		Country:      af.Country,
	}
}

func (rf resourceFixture) resource(kind project.ResourceKind, now time.Time) project.Resource {
	return project.Resource{
		ID:          idOrNew(rf.ID),
		Name:        core.CleanString(rf.Name),
		Type:        kind,
		Description: rf.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// loadCounts reports how many rows each section inserted.
type loadCounts map[string]int

func (lc loadCounts) String() string {
	s := ""
	for _, section := range []string{"users", "tags", "accounts", "contacts", "projects", "equipment", "crew", "transportation"} {
		s += fmt.Sprintf("%s: %d\n", section, lc[section])
	}
	return s
}

func newLoadDataCommand(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "loaddata FILE.yaml",
		Short: "Load users, tags, accounts, contacts and project resources from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "reading fixture file")
			}
			counts, err := cli.loadData(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

// loadData inserts every fixture in raw inside a single transaction.
func (cli *commandLine) loadData(ctx context.Context, raw []byte) (loadCounts, error) {
	var fx fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, errors.Wrap(err, "parsing fixture file")
	}

	counts := make(loadCounts)
	err := core.WithTx(ctx, cli.db, func(tx core.DBExecutor) error {
		ld := loader{cli: cli, tx: tx, now: core.Now(), tagIDs: make(map[string]int), counts: counts}
		steps := []func(context.Context, fixtures) error{
			ld.users, ld.tags, ld.accounts, ld.contacts, ld.projects, ld.resources,
		}
		for _, step := range steps {
			if err := step(ctx, fx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

type loader struct {
	cli    *commandLine
	tx     core.DBExecutor
	now    time.Time
	tagIDs map[string]int
	counts loadCounts
}

func idOrNew(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func nullable(s string) null.String {
	return null.NewString(s, s != "")
}

func (ld *loader) users(ctx context.Context, fx fixtures) error {
	for i, f := range fx.Users {
		usr := user.User{
			ID:        idOrNew(f.ID),
			Name:      core.CleanString(f.Name),
			Username:  core.CleanString(f.Username, true /* lower */),
			Email:     core.CleanString(f.Email, true /* lower */),
			Roles:     f.Roles,
			IsActive:  !f.Inactive,
			CreatedAt: ld.now,
			UpdatedAt: ld.now,
		}
		if usr.Roles == nil {
			usr.Roles = []string{}
		}
		if usr.Username == "" && usr.Email == "" {
			return fmt.Errorf("users[%d]: username or email is required", i)
		}
		if f.Password != "" {
			if err := usr.SetPassword(f.Password); err != nil {
				return errors.Wrapf(err, "users[%d]", i)
			}
		}
		if _, err := ld.cli.usrRepo.CreateUser(ctx, usr, ld.tx); err != nil {
			return errors.Wrapf(err, "users[%d]", i)
		}
		ld.counts["users"]++
	}
	return nil
}

func (ld *loader) tags(ctx context.Context, fx fixtures) error {
	for i, t := range fx.Tags {
		t.Name = core.CleanString(t.Name)
		if err := ld.cli.validate.Struct(t); err != nil {
			return errors.Wrapf(err, "tags[%d]", i)
		}
		created, err := ld.cli.crmRepo.CreateTag(ctx, t, ld.tx)
		if err != nil {
			return errors.Wrapf(err, "tags[%d]", i)
		}
		ld.tagIDs[created.Name] = created.ID
		ld.counts["tags"]++
	}
	return nil
}

func (ld *loader) userID(ctx context.Context, uname string) (string, error) {
	uname = core.CleanString(uname, true /* lower */)
	usr, err := ld.cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname}}, ld.tx)
	if err != nil {
		return "", errors.Wrapf(err, "created_by %q", uname)
	}
	return usr.ID, nil
}

func (ld *loader) tagList(names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, ok := ld.tagIDs[core.CleanString(name)]
		if !ok {
			return nil, fmt.Errorf("unknown tag %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// level returns the tree level of a node placed under parent, which must already be saved.
func (ld *loader) level(ctx context.Context, tree crm.Tree, id, parent string) (int, error) {
	if parent == "" {
		return 0, nil
	}
	if parent == id {
		return 0, core.NewFieldError("parent", "a node cannot be its own parent")
	}
	level, err := ld.cli.crmRepo.TreeLevel(ctx, tree, parent, ld.tx)
	if err != nil {
		return 0, errors.Wrapf(err, "parent %q", parent)
	}
	return level + 1, nil
}

func (ld *loader) accounts(ctx context.Context, fx fixtures) error {
	for i, f := range fx.Accounts {
		createdBy, err := ld.userID(ctx, f.CreatedBy)
		if err != nil {
			return errors.Wrapf(err, "accounts[%d]", i)
		}
		acc := crm.Account{
			ID:          idOrNew(f.ID),
			Name:        core.CleanString(f.Name),
			AccountType: f.AccountType,
			Industry:    nullable(f.Industry),
			ParentID:    nullable(f.Parent),
			Website:     f.Website,
			Email:       f.Email,
			Phone:       f.Phone,
			Address:     f.address(),
			CreatedByID: createdBy,
			CreatedAt:   ld.now,
			UpdatedAt:   ld.now,
		}
		if acc.AccountType == "" {
			acc.AccountType = "customer"
		}
		if err = ld.cli.validate.Struct(acc); err != nil {
			return errors.Wrapf(err, "accounts[%d]", i)
		}
		if acc.Level, err = ld.level(ctx, crm.AccountTree, acc.ID, f.Parent); err != nil {
			return errors.Wrapf(err, "accounts[%d]", i)
		}
		tagIDs, err := ld.tagList(f.Tags)
		if err != nil {
			return errors.Wrapf(err, "accounts[%d]", i)
		}
		if err = ld.cli.crmRepo.CreateAccount(ctx, acc, ld.tx); err != nil {
			return errors.Wrapf(err, "accounts[%d]", i)
		}
		if err = ld.cli.crmRepo.SetTags(ctx, crm.TagAccount, acc.ID, tagIDs, ld.tx); err != nil {
			return errors.Wrapf(err, "accounts[%d]", i)
		}
		ld.counts["accounts"]++
	}
	return nil
}

func (ld *loader) contacts(ctx context.Context, fx fixtures) error {
	for i, f := range fx.Contacts {
		createdBy, err := ld.userID(ctx, f.CreatedBy)
		if err != nil {
			return errors.Wrapf(err, "contacts[%d]", i)
		}
		c := crm.Contact{
			ID:                idOrNew(f.ID),
			FirstName:         core.CleanString(f.FirstName),
			LastName:          core.CleanString(f.LastName),
			Title:             f.Title,
			Email:             core.CleanString(f.Email, true /* lower */),
			Phone:             f.Phone,
			AccountID:         nullable(f.Account),
			ParentID:          nullable(f.Parent),
			Status:            f.Status,
			EmailOptOut:       f.EmailOptOut,
			UseAccountAddress: f.Account != "",
			Address:           f.address(),
			CreatedByID:       createdBy,
			CreatedAt:         ld.now,
			UpdatedAt:         ld.now,
		}
		if c.Status == "" {
			c.Status = "active"
		}
		if err = ld.cli.validate.Struct(c); err != nil {
			return errors.Wrapf(err, "contacts[%d]", i)
		}
		if c.Level, err = ld.level(ctx, crm.ContactTree, c.ID, f.Parent); err != nil {
			return errors.Wrapf(err, "contacts[%d]", i)
		}
		tagIDs, err := ld.tagList(f.Tags)
		if err != nil {
			return errors.Wrapf(err, "contacts[%d]", i)
		}
		if err = ld.cli.crmRepo.CreateContact(ctx, c, ld.tx); err != nil {
			return errors.Wrapf(err, "contacts[%d]", i)
		}
		if err = ld.cli.crmRepo.SetTags(ctx, crm.TagContact, c.ID, tagIDs, ld.tx); err != nil {
			return errors.Wrapf(err, "contacts[%d]", i)
		}
		ld.counts["contacts"]++
	}
	return nil
}

func (ld *loader) projects(ctx context.Context, fx fixtures) error {
	for i, f := range fx.Projects {
		start, err := core.ParseDate(f.StartDate)
		if err != nil {
			return errors.Wrapf(err, "projects[%d]: start_date", i)
		}
		end, err := core.ParseDate(f.EndDate)
		if err != nil {
			return errors.Wrapf(err, "projects[%d]: end_date", i)
		}
		p := project.Project{
			ID:          idOrNew(f.ID),
			Name:        core.CleanString(f.Name),
			Description: f.Description,
			StartDate:   start,
			EndDate:     end,
			Status:      f.Status,
			CreatedAt:   ld.now,
			UpdatedAt:   ld.now,
		}
		if p.Status == "" {
			p.Status = project.StatusPlanned
		}
		if err = ld.cli.validate.Struct(p); err != nil {
			return errors.Wrapf(err, "projects[%d]", i)
		}
		if end.Before(start.Time) {
			return fmt.Errorf("projects[%d]: end_date is before start_date", i)
		}
		if err = ld.cli.projectRepo.CreateProject(ctx, p, ld.tx); err != nil {
			return errors.Wrapf(err, "projects[%d]", i)
		}
		ld.counts["projects"]++
	}
	return nil
}

func (ld *loader) resources(ctx context.Context, fx fixtures) error {
	for i, f := range fx.Equipment {
		e := project.Equipment{
			Resource:    f.resource(project.KindEquipment, ld.now),
			ModelNumber: f.ModelNumber,
			Category:    core.CleanString(f.Category),
		}
		if err := ld.cli.validate.Struct(e); err != nil {
			return errors.Wrapf(err, "equipment[%d]", i)
		}
		if err := ld.cli.projectRepo.CreateEquipment(ctx, e, ld.tx); err != nil {
			return errors.Wrapf(err, "equipment[%d]", i)
		}
		ld.counts["equipment"]++
	}
	for i, f := range fx.Crew {
		c := project.Crew{
			Resource: f.resource(project.KindCrew, ld.now),
			Role:     core.CleanString(f.Role),
			Skills:   f.Skills,
		}
		if err := ld.cli.validate.Struct(c); err != nil {
			return errors.Wrapf(err, "crew[%d]", i)
		}
		if err := ld.cli.projectRepo.CreateCrew(ctx, c, ld.tx); err != nil {
			return errors.Wrapf(err, "crew[%d]", i)
		}
		ld.counts["crew"]++
	}
	for i, f := range fx.Transportation {
		t := project.Transportation{
			Resource:    f.resource(project.KindTransportation, ld.now),
			VehicleType: core.CleanString(f.VehicleType),
			Capacity:    f.Capacity,
		}
		if err := ld.cli.validate.Struct(t); err != nil {
			return errors.Wrapf(err, "transportation[%d]", i)
		}
		if err := ld.cli.projectRepo.CreateTransportation(ctx, t, ld.tx); err != nil {
			return errors.Wrapf(err, "transportation[%d]", i)
		}
		ld.counts["transportation"]++
	}
	return nil
}

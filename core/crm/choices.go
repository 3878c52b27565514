package crm

import "github.com/eventuais/eventuais/core"

var (
	AccountTypes = core.Choices{
		{Value: "customer", Label: "Customer"},
		{Value: "partner", Label: "Partner"},
		{Value: "vendor", Label: "Vendor"},
		{Value: "prospect", Label: "Prospect"},
		{Value: "competitor", Label: "Competitor"},
		{Value: "other", Label: "Other"},
	}

	Industries = core.Choices{
		{Value: "technology", Label: "Technology"},
		{Value: "finance", Label: "Finance"},
		{Value: "healthcare", Label: "Healthcare"},
		{Value: "education", Label: "Education"},
		{Value: "manufacturing", Label: "Manufacturing"},
		{Value: "retail", Label: "Retail"},
		{Value: "entertainment", Label: "Entertainment"},
		{Value: "other", Label: "Other"},
	}

	ContactStatuses = core.Choices{
		{Value: "active", Label: "Active"},
		{Value: "inactive", Label: "Inactive"},
		{Value: "lead", Label: "Lead"},
	}

	// OpportunityStages are listed in pipeline order.
	OpportunityStages = core.Choices{
		{Value: "prospecting", Label: "Prospecting"},
		{Value: "qualification", Label: "Qualification"},
		{Value: "needs_analysis", Label: "Needs Analysis"},
		{Value: "value_proposition", Label: "Value Proposition"},
		{Value: "decision_makers", Label: "Decision Makers"},
		{Value: "proposal", Label: "Proposal"},
		{Value: "negotiation", Label: "Negotiation"},
		{Value: "closed_won", Label: "Closed Won"},
		{Value: "closed_lost", Label: "Closed Lost"},
	}

	ActivityTypes = core.Choices{
		{Value: "call", Label: "Call"},
		{Value: "email", Label: "Email"},
		{Value: "meeting", Label: "Meeting"},
		{Value: "task", Label: "Task"},
		{Value: "note", Label: "Note"},
		{Value: "other", Label: "Other"},
	}

	FieldTypes = core.Choices{
		{Value: FieldText, Label: "Text"},
		{Value: FieldTextarea, Label: "Text Area"},
		{Value: FieldNumber, Label: "Number"},
		{Value: FieldDate, Label: "Date"},
		{Value: FieldDatetime, Label: "Date Time"},
		{Value: FieldBoolean, Label: "Boolean"},
		{Value: FieldSelect, Label: "Select"},
		{Value: FieldMultiselect, Label: "Multi Select"},
		{Value: FieldURL, Label: "URL"},
		{Value: FieldEmail, Label: "Email"},
		{Value: FieldPhone, Label: "Phone"},
	}

	Platforms = core.Choices{
		{Value: "linkedin", Label: "LinkedIn"},
		{Value: "twitter", Label: "Twitter"},
		{Value: "facebook", Label: "Facebook"},
		{Value: "instagram", Label: "Instagram"},
		{Value: "youtube", Label: "YouTube"},
		{Value: "github", Label: "GitHub"},
		{Value: "other", Label: "Other"},
	}
)

// custom field types
const (
	FieldText        = "text"
	FieldTextarea    = "textarea"
	FieldNumber      = "number"
	FieldDate        = "date"
	FieldDatetime    = "datetime"
	FieldBoolean     = "boolean"
	FieldSelect      = "select"
	FieldMultiselect = "multiselect"
	FieldURL         = "url"
	FieldEmail       = "email"
	FieldPhone       = "phone"
)

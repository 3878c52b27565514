package crm

import (
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
)

func TestValidateFieldValue(t *testing.T) {
	sizes := types.JSONText(`["S", "M", "L"]`)

	tests := []struct {
		name    string
		field   CustomField
		value   string
		wantErr string
	}{
		{name: "optional empty", field: CustomField{FieldType: FieldNumber}, value: "  "},
		{name: "required empty", field: CustomField{FieldType: FieldText, IsRequired: true}, value: "", wantErr: "this field is required"},
		{name: "text", field: CustomField{FieldType: FieldText}, value: "anything"},
		{name: "number", field: CustomField{FieldType: FieldNumber}, value: "-12.5"},
		{name: "bad number", field: CustomField{FieldType: FieldNumber}, value: "12,5", wantErr: "enter a number"},
		{name: "date", field: CustomField{FieldType: FieldDate}, value: "2024-06-03"},
		{name: "bad date", field: CustomField{FieldType: FieldDate}, value: "03/06/2024", wantErr: "enter a valid date (YYYY-MM-DD)"},
		{name: "datetime", field: CustomField{FieldType: FieldDatetime}, value: "2024-06-03T10:00:00+01:00"},
		{name: "bad datetime", field: CustomField{FieldType: FieldDatetime}, value: "2024-06-03 10:00", wantErr: "enter a valid date time (RFC 3339)"},
		{name: "boolean", field: CustomField{FieldType: FieldBoolean}, value: "true"},
		{name: "bad boolean", field: CustomField{FieldType: FieldBoolean}, value: "yes", wantErr: "enter true or false"},
		{name: "url", field: CustomField{FieldType: FieldURL}, value: "https://acme.io/about"},
		{name: "bad url scheme", field: CustomField{FieldType: FieldURL}, value: "ftp://acme.io", wantErr: "enter a valid URL"},
		{name: "relative url", field: CustomField{FieldType: FieldURL}, value: "/about", wantErr: "enter a valid URL"},
		{name: "email", field: CustomField{FieldType: FieldEmail}, value: "jane@acme.io"},
		{name: "named email", field: CustomField{FieldType: FieldEmail}, value: "Jane <jane@acme.io>", wantErr: "enter a valid email address"},
		{name: "phone", field: CustomField{FieldType: FieldPhone}, value: "+244 923 000 000"},
		{name: "bad phone", field: CustomField{FieldType: FieldPhone}, value: "call me", wantErr: "enter a valid phone number"},
		{name: "select", field: CustomField{FieldType: FieldSelect, Choices: sizes}, value: "M"},
		{name: "bad select", field: CustomField{FieldType: FieldSelect, Choices: sizes}, value: "XL", wantErr: "XL is not a valid choice"},
		{name: "multiselect", field: CustomField{FieldType: FieldMultiselect, Choices: sizes}, value: "S, L"},
		{name: "bad multiselect", field: CustomField{FieldType: FieldMultiselect, Choices: sizes}, value: "S,XS", wantErr: "XS is not a valid choice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldValue(tt.field, tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func Test_validateCustomField(t *testing.T) {
	assert.EqualError(t, validateCustomField(CustomField{FieldType: FieldSelect}), "choices are required for select fields")
	assert.EqualError(t, validateCustomField(CustomField{FieldType: FieldMultiselect, Choices: types.JSONText(`"S"`)}), "choices are required for select fields")
	assert.EqualError(t, validateCustomField(CustomField{FieldType: FieldNumber, DefaultValue: "ten"}), "default value does not match the field type")
	assert.NoError(t, validateCustomField(CustomField{FieldType: FieldSelect, Choices: types.JSONText(`["S"]`), DefaultValue: "S"}))
	assert.NoError(t, validateCustomField(CustomField{FieldType: FieldText, IsRequired: true}))
}

func TestCustomField_ChoiceList(t *testing.T) {
	assert.Nil(t, CustomField{}.ChoiceList())
	assert.Nil(t, CustomField{Choices: types.JSONText(`{"a": 1}`)}.ChoiceList())
	assert.Equal(t, []string{"a", "b"}, CustomField{Choices: types.JSONText(`["a","b"]`)}.ChoiceList())
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docquery-ai/docquery-engine/pkg/apperrors"
	"github.com/docquery-ai/docquery-engine/pkg/models"
)

func newKeyValueExtraction(t *testing.T) KeyValueExtractionService {
	t.Helper()
	return NewKeyValueExtractionService(zap.NewNop())
}

func TestExtractFields_KnownLabels(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields, err := svc.ExtractFields(
		"Policy No: AB12345\n" +
			"Premium: $1,200.00\n" +
			"Effective Date: 2023-01-01\n" +
			"Email: jane@example.com\n")
	require.NoError(t, err)

	policy, ok := fields.FieldByName("Policy Number")
	require.True(t, ok)
	assert.Equal(t, "AB12345", policy.Value)

	premium, ok := fields.FieldByName("Premium")
	require.True(t, ok)
	assert.Equal(t, "$1,200.00", premium.Value)

	email, ok := fields.FieldByName("Email")
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", email.Value)
}

func TestExtractFields_LabelVariantsNormalize(t *testing.T) {
	svc := newKeyValueExtraction(t)

	tests := []struct {
		name string
		line string
	}{
		{"number word", "Policy Number: AB12345"},
		{"abbreviated", "policy no. AB12345"},
		{"hash", "Policy #AB12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := svc.ExtractFields(tt.line + "\n")
			require.NoError(t, err)
			f, ok := fields.FieldByName("Policy Number")
			require.True(t, ok)
			assert.Equal(t, "AB12345", f.Value)
		})
	}
}

func TestExtractFields_GenericKeyValue(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields, err := svc.ExtractFields("Vehicle Make: Toyota\nColor: Blue\n")
	require.NoError(t, err)

	f, ok := fields.FieldByName("Vehicle Make")
	require.True(t, ok)
	assert.Equal(t, "Toyota", f.Value)
	_, ok = fields.FieldByName("Color")
	assert.True(t, ok)
}

func TestExtractFields_Sections(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields, err := svc.ExtractFields(
		"=== CONTACT DETAILS ===\n" +
			"Phone: 555-0100\n" +
			"\n" +
			"COVERAGE\n" +
			"Deductible: $500\n")
	require.NoError(t, err)

	phone, ok := fields.FieldByName("Phone")
	require.True(t, ok)
	assert.Equal(t, "CONTACT DETAILS", phone.Section)

	deductible, ok := fields.FieldByName("Deductible")
	require.True(t, ok)
	assert.Equal(t, "COVERAGE", deductible.Section)

	assert.Contains(t, fields.Sections, "CONTACT DETAILS")
	assert.Contains(t, fields.Sections["CONTACT DETAILS"], "Phone: 555-0100")
}

func TestExtractFields_Lists(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields, err := svc.ExtractFields(
		"Covered perils: listed below\n" +
			"- Fire\n" +
			"- Theft\n" +
			"- Flood\n" +
			"\n" +
			"1. First step\n" +
			"2. Second step\n")
	require.NoError(t, err)

	require.Len(t, fields.Lists, 2)
	assert.Equal(t, []string{"Fire", "Theft", "Flood"}, fields.Lists[0].Items)
	assert.Equal(t, []string{"First step", "Second step"}, fields.Lists[1].Items)
}

func TestExtractFields_SingleItemIsNotAList(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields, err := svc.ExtractFields("Note: lone bullet follows\n- only one item\n")
	require.NoError(t, err)
	assert.Empty(t, fields.Lists)
}

func TestExtractFields_DatesAndAmounts(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields, err := svc.ExtractFields(
		"The inspection took place on March 3, 2021 and again on 2021-09-15.\n" +
			"Repairs cost $4,250.00 plus 300 USD in fees.\n")
	require.NoError(t, err)

	assert.Contains(t, fields.Dates, "2021-09-15")
	assert.Contains(t, fields.Dates, "March 3, 2021")
	assert.Contains(t, fields.Amounts, "$4,250.00")
	assert.Contains(t, fields.Amounts, "300 USD")
}

func TestExtractFields_NoFields(t *testing.T) {
	svc := newKeyValueExtraction(t)

	_, err := svc.ExtractFields("nothing structured lives in this text at all")
	assert.ErrorIs(t, err, apperrors.ErrNoFields)
}

func TestLookup(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields := &models.FieldSet{
		Fields: []models.Field{
			{Name: "Policy Number", Value: "AB12345", Section: "POLICY"},
			{Name: "Premium", Value: "$1,200.00"},
			{Name: "Insured Name", Value: "Jane Doe"},
		},
	}

	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"direct field words", "What is the policy number?", []string{"Policy Number"}},
		{"partial token", "How much is the premium?", []string{"Premium"}},
		{"substring both ways", "Who is insured?", []string{"Insured Name"}},
		{"no match", "What color is the car?", nil},
		{"short tokens ignored", "is it ok", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := svc.Lookup(tt.question, fields)
			var got []string
			for _, m := range matches {
				got = append(got, m.Field)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_CarriesSection(t *testing.T) {
	svc := newKeyValueExtraction(t)

	fields := &models.FieldSet{
		Fields: []models.Field{{Name: "Policy Number", Value: "AB12345", Section: "POLICY"}},
	}
	matches := svc.Lookup("what is the policy number", fields)
	require.Len(t, matches, 1)
	assert.Equal(t, "POLICY", matches[0].Source)
	assert.Equal(t, "AB12345", matches[0].Value)
}

func TestLookup_NilFieldSet(t *testing.T) {
	svc := newKeyValueExtraction(t)
	assert.Nil(t, svc.Lookup("anything", nil))
}

func TestDetectHeading(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		idx   int
		want  string
		ok    bool
	}{
		{"decorated equals", []string{"=== Coverage ===", "body"}, 0, "Coverage", true},
		{"decorated dashes", []string{"--- Coverage ---", "body"}, 0, "Coverage", true},
		{"all caps", []string{"COVERAGE DETAILS", "body"}, 0, "COVERAGE DETAILS", true},
		{"title case short", []string{"Coverage Details", "body"}, 0, "Coverage Details", true},
		{"trailing line is not heading", []string{"body", "Coverage Details"}, 1, "", false},
		{"ordinary sentence", []string{"This line reads like a plain sentence without punctuation marks", "body"}, 0, "", false},
		{"lowercase", []string{"not a heading", "body"}, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := detectHeading(tt.lines[tt.idx], tt.lines, tt.idx)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	assert.Equal(t, "Policy Number", normalizeFieldName("policy  number "))
	assert.Equal(t, "Vehicle Make", normalizeFieldName("VEHICLE MAKE"))
}

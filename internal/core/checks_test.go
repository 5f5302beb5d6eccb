package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireDomain(t *testing.T) {
	rule := RequireDomain("R1", "dm", "Demographics domain is required by SDTMIG v4.3.", "ref", SeverityError)

	t.Run("missing domain", func(t *testing.T) {
		ae := newDataset(t, "AE", "AE", []string{"AETERM"})
		got, err := rule.Apply([]*ParsedDataset{ae})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "DM", got[0].Domain)
		assert.Equal(t, SeverityError, got[0].Severity)
		assert.Contains(t, got[0].Message, "SDTMIG v4.3")
	})

	t.Run("present domain", func(t *testing.T) {
		dm := newDataset(t, "DM", "DM", []string{"STUDYID"})
		got, err := rule.Apply([]*ParsedDataset{dm})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestRequireVariables(t *testing.T) {
	rule := RequireVariables("R2", "DM", []string{"STUDYID", "USUBJID", "ARM"}, "ref", "rec")

	t.Run("lists every missing variable in one finding", func(t *testing.T) {
		dm := newDataset(t, "DM", "DM", []string{"STUDYID"})
		got, err := rule.Apply([]*ParsedDataset{dm})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Missing required variables: USUBJID, ARM", got[0].Message)
	})

	t.Run("absent domain yields nothing", func(t *testing.T) {
		got, err := rule.Apply(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOptionalVariables(t *testing.T) {
	rule := OptionalVariables("R3", "DM", []string{"AGE", "RACE"}, "ref")
	dm := newDataset(t, "DM", "DM", []string{"STUDYID"})

	got, err := rule.Apply([]*ParsedDataset{dm})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AGE", got[0].Variable)
	assert.Equal(t, "RACE", got[1].Variable)
	for _, f := range got {
		assert.Equal(t, SeverityWarning, f.Severity)
	}
}

func TestUniqueKey(t *testing.T) {
	rule := UniqueKey("R4", "DM", []string{"STUDYID", "USUBJID"}, "ref", "rec")

	t.Run("flags repeats only", func(t *testing.T) {
		dm := newDataset(t, "DM", "DM", []string{"STUDYID", "USUBJID"},
			Row{"STUDYID": Text("S1"), "USUBJID": Text("1")},
			Row{"STUDYID": Text("S1"), "USUBJID": Text("2")},
			Row{"STUDYID": Text("S1"), "USUBJID": Text("1")},
			Row{"STUDYID": Text("S1"), "USUBJID": Text("1")},
		)
		got, err := rule.Apply([]*ParsedDataset{dm})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Duplicate records detected for keys STUDYID, USUBJID at rows 3, 4", got[0].Message)
		assert.Equal(t, "STUDYID,USUBJID", got[0].Variable)
	})

	t.Run("absent domain is skipped", func(t *testing.T) {
		got, err := rule.Apply([]*ParsedDataset{newDataset(t, "AE", "AE", []string{"AETERM"})})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no keys is an evaluation error", func(t *testing.T) {
		_, err := UniqueKey("R5", "DM", nil, "", "").Apply(nil)
		assert.Error(t, err)
	})
}

func TestDatatype(t *testing.T) {
	dm := newDataset(t, "DM", "DM", []string{"AGE"}, Row{"AGE": Text("forty")})

	got, err := Datatype("R6", "DM", "AGE", "integer", "ref").Apply([]*ParsedDataset{dm})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Variable AGE is string but expected integer.", got[0].Message)

	got, err = Datatype("R7", "DM", "AGE", "STR", "ref").Apply([]*ParsedDataset{dm})
	require.NoError(t, err)
	assert.Empty(t, got, "substring match is case-insensitive")
}

func TestDatatype_Numeric(t *testing.T) {
	rule := Datatype("R9", "DM", "AGE", DatatypeNumeric, "ref")

	tests := []struct {
		name  string
		value Value
		want  int
	}{
		{name: "integer", value: Integer(42), want: 0},
		{name: "double", value: Double(42.5), want: 0},
		{name: "text", value: Text("forty"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := newDataset(t, "DM", "DM", []string{"AGE"}, Row{"AGE": tt.value})
			got, err := rule.Apply([]*ParsedDataset{dm})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestControlledTerminology(t *testing.T) {
	rule := ControlledTerminology("R8", "DM", "SEX", []string{"M", "F", "U"}, "ref", "rec")

	dm := newDataset(t, "DM", "DM", []string{"SEX"},
		Row{"SEX": Text("X")},
		Row{"SEX": Text("M")},
		Row{"SEX": Text("")},
		Row{},
		Row{"SEX": Text("male")},
		Row{"SEX": Text("X")},
	)

	got, err := rule.Apply([]*ParsedDataset{dm})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Found 2 value(s) not in controlled terminology: X, male.", got[0].Message)
	assert.Equal(t, SeverityError, got[0].Severity)
}

func TestUppercaseVariables(t *testing.T) {
	rule := UppercaseVariables("R9", "ref", "rec")

	t.Run("one finding per dataset regardless of rows", func(t *testing.T) {
		empty := newDataset(t, "dm", "DM", []string{"studyid", "usubjid"})
		got, err := rule.Apply([]*ParsedDataset{empty})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, SeverityInfo, got[0].Severity)
		assert.Equal(t, "Variables should be uppercase: studyid, usubjid", got[0].Message)
	})

	t.Run("compliant dataset", func(t *testing.T) {
		got, err := rule.Apply([]*ParsedDataset{newDataset(t, "DM", "DM", []string{"STUDYID"})})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

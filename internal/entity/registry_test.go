package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-admin-console/internal/models"
	appErrors "github.com/noah-isme/sma-admin-console/pkg/errors"
)

func TestDefaultRegistryCoversConsoleScreens(t *testing.T) {
	reg := Default()
	names := make([]string, 0)
	for _, d := range reg.All() {
		names = append(names, d.Name)
		require.NotEmpty(t, d.Columns, d.Name)
		require.NotEmpty(t, d.Path, d.Name)
		for _, c := range d.Columns {
			assert.True(t, d.HasField(c.Key), "%s column %s is not a field", d.Name, c.Key)
		}
	}
	assert.Equal(t, []string{"student", "teacher", "parent", "class", "subject", "book", "expense", "fee", "attendance", "notice", "exam", "grade"}, names)
}

func TestLookup(t *testing.T) {
	reg := Default()
	d, err := reg.Lookup(" Student ")
	require.NoError(t, err)
	assert.Equal(t, "/students", d.Path)
	assert.True(t, d.IsFileField("photo"))

	_, err = reg.Lookup("spaceship")
	require.ErrorIs(t, err, appErrors.ErrUnknownEntity)
}

func TestDecodeDropsUnknownAndDefaultsMissing(t *testing.T) {
	d, err := Default().Lookup("fee")
	require.NoError(t, err)

	e, err := d.Decode(models.Record{ID: "fee-1", Values: models.Fields{
		"studentName": models.Text("Rani"),
		"amount":      models.Text("250"),
		"__v":         models.Text("0"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "fee-1", e.RecordID())

	fields := e.Fields()
	assert.Equal(t, "250", fields.Get("amount").Text)
	assert.Contains(t, fields, "status")
	assert.NotContains(t, fields, "__v")
	assert.Equal(t, d.FieldKeys(), []string{"studentName", "className", "feeAmount", "amount", "status", "dueDate"})
}

func TestValidatorMessages(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	require.NoError(t, v.Validate(&models.Expense{Title: "Chalk", Amount: "12.5"}))

	err = v.Validate(&models.Expense{Amount: "twelve", Date: "31/12/2024"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	msg := appErrors.FromError(err).Message
	assert.Contains(t, msg, "title is a required field")
	assert.Contains(t, msg, "amount must be a valid numeric value")
	assert.Contains(t, msg, "date")
}

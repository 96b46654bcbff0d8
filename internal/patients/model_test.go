package patients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CreateInput {
	return CreateInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		PhoneNumber: "+44 20 7946 0000",
		DOB:         "1815-12-10",
	}
}

func TestCreateInput_Patient(t *testing.T) {
	in := validInput()
	in.FirstName = "  Ada "
	p, err := in.Patient()
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "1815-12-10", p.DOB)
}

func TestCreateInput_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*CreateInput)
		field string
	}{
		{"missing first name", func(in *CreateInput) { in.FirstName = " " }, "firstName"},
		{"missing last name", func(in *CreateInput) { in.LastName = "" }, "lastName"},
		{"missing email", func(in *CreateInput) { in.Email = "" }, "email"},
		{"missing phone", func(in *CreateInput) { in.PhoneNumber = "" }, "phoneNumber"},
		{"missing dob", func(in *CreateInput) { in.DOB = "" }, "dob"},
		{"bad email", func(in *CreateInput) { in.Email = "not-an-email" }, "email"},
		{"display name email", func(in *CreateInput) { in.Email = "Ada <ada@example.com>" }, "email"},
		{"bad dob", func(in *CreateInput) { in.DOB = "10/12/1815" }, "dob"},
		{"impossible dob", func(in *CreateInput) { in.DOB = "1815-02-30" }, "dob"},
		{"future dob", func(in *CreateInput) { in.DOB = "2999-01-01" }, "dob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)
			_, err := in.Patient()
			require.ErrorIs(t, err, ErrValidation)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.field, fe.Field)
		})
	}
}

func TestUpdateInput_Apply(t *testing.T) {
	base, err := validInput().Patient()
	require.NoError(t, err)
	base.ID = 3

	phone := "555-0100"
	p, err := UpdateInput{PhoneNumber: &phone}.Apply(*base)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "555-0100", p.PhoneNumber)
	assert.Equal(t, base.Email, p.Email)
	assert.Equal(t, "+44 20 7946 0000", base.PhoneNumber, "input record is untouched")

	empty := ""
	_, err = UpdateInput{LastName: &empty}.Apply(*base)
	require.ErrorIs(t, err, ErrValidation)
}

package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func TestValidateStruct(t *testing.T) {
	valid := registerPayload{FullName: "Alice", Email: "alice@x.com", Password: "pw12345678"}
	require.NoError(t, ValidateStruct(valid))
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(registerPayload{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)

	fields := make(map[string]string, len(failures))
	for _, f := range failures {
		fields[f.Field] = f.Tag
	}

	require.Equal(t, "required", fields["full_name"])
	require.Equal(t, "email", fields["email"])
	require.Equal(t, "min", fields["password"])
}

func TestValidateStructMaxPasswordLength(t *testing.T) {
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}

	err := ValidateStruct(registerPayload{FullName: "Bob", Email: "bob@x.com", Password: string(long)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "max")
}

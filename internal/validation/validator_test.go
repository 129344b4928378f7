package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assigneeStruct struct {
	AssignedTo string `validate:"assignee_ref"`
}

func TestValidateStruct_AssigneeRef(t *testing.T) {
	testCases := []struct {
		name          string
		value         string
		expectedError bool
	}{
		{name: "Empty clears the assignee", value: ""},
		{name: "Plain username", value: "alice"},
		{name: "Username with dots and dashes", value: "alice.smith-2"},
		{name: "Team reference", value: "team:backend"},
		{name: "Spaces rejected", value: "alice smith", expectedError: true},
		{name: "Empty team slug rejected", value: "team:", expectedError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStruct(assigneeStruct{AssignedTo: tc.value})

			if tc.expectedError {
				require.Error(t, err)

				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)

				return
			}

			assert.NoError(t, err)
		})
	}
}

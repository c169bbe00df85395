package corks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		expected string
	}{
		{NewInvalidProposalError("bad payload"), "invalid cork proposal: bad payload"},
		{ErrNoExecutor, "no executor configured"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.err.Error())
	}
}

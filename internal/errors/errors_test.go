package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var sentinels = []error{
	ErrInvalidCredentials,
	ErrNotSignedIn,
	ErrEmptyModel,
	ErrLoopStopped,
	ErrNotLoaded,
	ErrUnknown,
	ErrMaxStorage,
	ErrIllegalTeamMember,
	ErrUnauthenticated,
	ErrInvalidObject,
	ErrAPIRequest,
	ErrAPIResponse,
}

func TestSentinelErrors_ImplementErrorInterface(t *testing.T) {
	for _, err := range sentinels {
		assert.NotEmpty(t, err.Error(), "sentinel error should have non-empty message")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinel errors should be distinct: %q vs %q", sentinels[i], sentinels[j])
		}
	}
}

func TestSentinelErrors_ExpectedMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidCredentials, "invalid email or password"},
		{ErrNotSignedIn, "no signed in user"},
		{ErrInvalidObject, "invalid object reference"},
		{ErrIllegalTeamMember, "illegal team member"},
		{ErrAPIRequest, "API request failed"},
		{ErrAPIResponse, "unexpected API response"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}

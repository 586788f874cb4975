package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticAuthenticator_Authenticate(t *testing.T) {
	auth := NewStaticAuthenticator(map[string]Credential{
		"server-7":  {PIN: "1234", Role: "server"},
		"manager-1": {PIN: "9876", Role: "manager"},
		"broken":    {Role: "server"},
	})

	testCases := map[string]struct {
		username string
		pin      string
		want     *Staff
	}{
		"should authenticate a server": {
			username: "server-7", pin: "1234",
			want: &Staff{Username: "server-7", Role: "server"},
		},
		"should authenticate a manager": {
			username: "manager-1", pin: "9876",
			want: &Staff{Username: "manager-1", Role: "manager"},
		},
		"should reject a wrong pin": {
			username: "server-7", pin: "0000",
		},
		"should reject an unknown user": {
			username: "ghost", pin: "1234",
		},
		"should reject an empty pin even when the roster entry has none": {
			username: "broken", pin: "",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			staff, err := auth.Authenticate(tc.username, tc.pin)
			if tc.want == nil {
				assert.ErrorIs(t, err, ErrAuthenticationFailed)
				assert.Nil(t, staff)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, staff)
		})
	}
}

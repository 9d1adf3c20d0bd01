package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthRequired_Accepts(t *testing.T) {
	t.Parallel()

	kinds := []AuthKind{AuthKindNone, AuthKindSignature, AuthKindProof}
	cases := []struct {
		req    AuthRequired
		accept []bool // indexed by kinds
	}{
		{AuthNone, []bool{true, true, true}},
		{AuthSignature, []bool{false, true, false}},
		{AuthProof, []bool{false, false, true}},
		{AuthEither, []bool{false, true, true}},
		{AuthImpossible, []bool{false, false, false}},
	}
	for _, tc := range cases {
		for i, kind := range kinds {
			require.Equal(t, tc.accept[i], tc.req.Accepts(kind), "%s accepts %s", tc.req, kind)
		}
	}
}

func TestPermissions_Check(t *testing.T) {
	t.Parallel()

	p := DefaultPermissions()
	require.NoError(t, p.Check(ActionReceive, AuthKindNone))
	require.NoError(t, p.Check(ActionSend, AuthKindSignature))

	err := p.Check(ActionSend, AuthKindProof)
	require.ErrorIs(t, err, ErrAuthorizationViolation)
	require.EqualError(t, err, "authorization violation: send requires signature authorization, got proof")

	p.Send = AuthEither
	require.NoError(t, p.Check(ActionSend, AuthKindProof))
	require.Equal(t, AuthImpossible, p.Required(Action(99)))
}

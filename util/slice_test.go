package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_TransformSlice(t *testing.T) {
	type account struct {
		id      string
		balance uint64
	}
	accounts := []account{{"a", 1}, {"c", 3}, {"b", 2}}
	ids := TransformSlice(accounts, func(v account) string { return v.id })
	require.Equal(t, []string{"a", "c", "b"}, ids)

	require.Nil(t, TransformSlice([]account(nil), func(v account) string { return v.id }))
}

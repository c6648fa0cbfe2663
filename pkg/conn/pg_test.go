package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionDSN(t *testing.T) {
	testCases := []struct {
		desc     string
		opt      Option
		expected string
	}{
		{
			"defaults",
			Option{},
			"postgres://localhost:5432?sslmode=disable",
		},
		{
			"credentials and database",
			Option{Host: "db", Port: 6543, User: "ledger", Password: "p@ss", Database: "trade"},
			"postgres://ledger:p%40ss@db:6543/trade?sslmode=disable",
		},
		{
			"user without password and params",
			Option{User: "ledger", SSLMode: "require", Params: map[string]string{"application_name": "ledger", "": "skip"}},
			"postgres://ledger@localhost:5432?application_name=ledger&sslmode=require",
		},
		{
			"conn string wins",
			Option{Host: "ignored", ConnString: "postgres://x@y/z"},
			"postgres://x@y/z",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			dsn, err := tc.opt.dsn()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, dsn)
		})
	}
}

package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClassifiesLibraryErrors(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{bad"), &v)
	}
	var typeErr error
	{
		var v struct{ Age int }
		typeErr = json.NewDecoder(strings.NewReader(`{"Age":"x"}`)).Decode(&v)
	}

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"no rows", fmt.Errorf("repo: %w", pgx.ErrNoRows), KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, KindDataConflict},
		{"not null", &pgconn.PgError{Code: "23502"}, KindConstraintViolation},
		{"syntax", &pgconn.PgError{Code: "42601"}, KindDataAccess},
		{"breaker", gobreaker.ErrOpenState, KindDataAccess},
		{"json syntax", syntaxErr, KindMalformedRequest},
		{"json type", typeErr, KindTypeMismatch},
		{"deadline", context.DeadlineExceeded, KindRuntime},
		{"plain", errors.New("x"), KindUnclassified},
		{"app", fmt.Errorf("wrapped: %w", New(KindAccessDenied, "no")), KindAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := From(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Kind)
		})
	}
	assert.Nil(t, From(nil))
}

func TestFilterSensitive(t *testing.T) {
	assert.Equal(t, filteredMessage, FilterSensitive("pgconn: connection refused"))
	assert.Equal(t, filteredMessage, FilterSensitive("Invalid TOKEN supplied"))
	assert.Equal(t, emptyMessage, FilterSensitive("  "))
	assert.Equal(t, "项目名称重复", FilterSensitive("项目名称重复"))
}

func TestConflictCarriesField(t *testing.T) {
	err := Conflict("email", "邮箱已被注册")
	assert.Equal(t, KindDataConflict, err.Kind)
	assert.Equal(t, map[string]string{"email": "邮箱已被注册"}, err.Fields)
}

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

func rules(vs Violations) map[string]string {
	out := make(map[string]string, len(vs))
	for _, v := range vs {
		out[v.Field] = v.Rule
	}
	return out
}

func requireViolations(t *testing.T, err error) Violations {
	t.Helper()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	require.NotEmpty(t, verr.Violations)
	return verr.Violations
}

func TestDecodeRegister_OK(t *testing.T) {
	t.Parallel()

	in, err := DecodeRegister([]byte(`{"name":"  Ann ","email":" Ann@X.com ","password":"secret1"}`))
	require.NoError(t, err)
	require.Equal(t, "Ann", in.Name)
	require.Equal(t, "ann@x.com", in.Email)
	require.Equal(t, "secret1", in.Password)
}

func TestDecodeRegister_Fake(t *testing.T) {
	t.Parallel()

	body := `{"name":"` + gofakeit.FirstName() + `","email":"user.` + strings.ToLower(gofakeit.LetterN(6)) +
		`@example.com","password":"` + gofakeit.Password(true, true, true, false, false, 12) + `"}`

	_, err := DecodeRegister([]byte(body))
	require.NoError(t, err)
}

func TestDecodeRegister_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "bad_email",
			body: `{"name":"Ann","email":"not-an-email","password":"secret1"}`,
			want: map[string]string{"email": RuleEmail},
		},
		{
			name: "all_missing",
			body: `{}`,
			want: map[string]string{"name": RuleRequired, "email": RuleRequired, "password": RuleRequired},
		},
		{
			name: "short_name_short_password",
			body: `{"name":"A","email":"a@x.com","password":"123"}`,
			want: map[string]string{"name": RuleMinLength, "password": RuleMinLength},
		},
		{
			name: "long_name",
			body: `{"name":"` + strings.Repeat("n", 51) + `","email":"a@x.com","password":"secret1"}`,
			want: map[string]string{"name": RuleMaxLength},
		},
		{
			name: "long_password",
			body: `{"name":"Ann","email":"a@x.com","password":"` + strings.Repeat("p", 101) + `"}`,
			want: map[string]string{"password": RuleMaxLength},
		},
		{
			name: "wrong_types",
			body: `{"name":42,"email":true,"password":["x"]}`,
			want: map[string]string{"name": RuleString, "email": RuleString, "password": RuleString},
		},
		{
			name: "null_is_missing",
			body: `{"name":null,"email":"a@x.com","password":"secret1"}`,
			want: map[string]string{"name": RuleRequired},
		},
		{
			name: "whitespace_name",
			body: `{"name":"   ","email":"a@x.com","password":"secret1"}`,
			want: map[string]string{"name": RuleRequired},
		},
		{
			name: "extra_field",
			body: `{"name":"Ann","email":"a@x.com","password":"secret1","refreshToken":"x"}`,
			want: map[string]string{"refreshToken": RuleWhitelist},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := DecodeRegister([]byte(tt.body))
			require.Equal(t, tt.want, rules(requireViolations(t, err)))
		})
	}
}

func TestDecodeRegister_NameLengthInRunes(t *testing.T) {
	t.Parallel()

	name := strings.Repeat("я", 50)
	in, err := DecodeRegister([]byte(`{"name":"` + name + `","email":"a@x.com","password":"secret1"}`))
	require.NoError(t, err)
	require.Equal(t, name, in.Name)
}

func TestDecode_MalformedBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{``, `null`, `[]`, `"str"`, `{"name":`, `{} {}`} {
		_, err := DecodeLogin([]byte(body))
		vs := requireViolations(t, err)
		require.Len(t, vs, 1, body)
		require.Equal(t, "body", vs[0].Field)
		require.Equal(t, RuleJSON, vs[0].Rule)
	}
}

func TestDecodeLogin(t *testing.T) {
	t.Parallel()

	in, err := DecodeLogin([]byte(`{"email":"ANN@x.com","password":"x"}`))
	require.NoError(t, err)
	require.Equal(t, "ann@x.com", in.Email)
	require.Equal(t, "x", in.Password)

	_, err = DecodeLogin([]byte(`{"email":"ann@x.com"}`))
	require.Equal(t, map[string]string{"password": RuleRequired}, rules(requireViolations(t, err)))
}

func TestDecodeRefresh(t *testing.T) {
	t.Parallel()

	in, err := DecodeRefresh([]byte(`{"refreshToken":"abc"}`))
	require.NoError(t, err)
	require.Equal(t, "abc", in.RefreshToken)

	_, err = DecodeRefresh([]byte(`{"refreshToken":""}`))
	require.Equal(t, map[string]string{"refreshToken": RuleRequired}, rules(requireViolations(t, err)))

	_, err = DecodeRefresh([]byte(`{"refreshToken":1}`))
	require.Equal(t, map[string]string{"refreshToken": RuleString}, rules(requireViolations(t, err)))
}

func TestValidate_OrderAndMessages(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"zeta": 1, "alpha": 2, "password": "1"}

	out, vs := Validate(raw, RegisterSchema)
	require.Nil(t, out)
	require.Equal(t, Violations{
		{Field: "name", Rule: RuleRequired, Message: "Name is required"},
		{Field: "email", Rule: RuleRequired, Message: "Email is required"},
		{Field: "password", Rule: RuleMinLength, Message: "Password must be at least 6 characters long"},
		{Field: "alpha", Rule: RuleWhitelist, Message: "property alpha should not exist"},
		{Field: "zeta", Rule: RuleWhitelist, Message: "property zeta should not exist"},
	}, vs)

	err := &ValidationError{Violations: vs[:2]}
	require.Equal(t, "Validation failed: Name is required; Email is required", err.Error())
}

func TestEmailPattern(t *testing.T) {
	t.Parallel()

	valid := []string{
		"ann@x.com", "a.b-c@mail.example.org", "user_1@host.io",
		"ann@company.info", "ann+tag@x.com", "ann@x.technology",
	}
	invalid := []string{
		"not-an-email", "@x.com", "ann@", "ann@x", "ann@x.c", "ann x@x.com",
		"+ann@x.com", "ann+@x.com", "ann@x..com",
	}

	for _, e := range valid {
		require.True(t, emailRe.MatchString(e), e)
	}
	for _, e := range invalid {
		require.False(t, emailRe.MatchString(e), e)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propgate/propgate/internal/fieldspec"
	"github.com/propgate/propgate/internal/users"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestFieldsCmd_BuiltIn(t *testing.T) {
	out, err := run(t, "fields")
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Regexp(t, `phone\s+premium`, out)
	assert.Regexp(t, `title\s+free`, out)
}

func TestFieldsCmd_YAMLRoundTrip(t *testing.T) {
	out, err := run(t, "fields", "--yaml")
	require.NoError(t, err)
	parsed, err := fieldspec.ParseYAML([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, fieldspec.Listing.FieldIDs(), parsed.FieldIDs())

	path := writeFile(t, "listing.yaml", out)
	out, err = run(t, "fields", "--file", path)
	require.NoError(t, err)
	assert.Regexp(t, `exact_address\s+premium`, out)
}

func TestProjectCmd(t *testing.T) {
	rec := writeFile(t, "rec.json", `{"title":"Loft","phone":"0102030405","price":420000}`)

	decode := func(out string) (viewer string, upsell bool, fields map[string]map[string]any) {
		var got struct {
			Viewer string                    `json:"viewer"`
			Upsell bool                      `json:"upsell"`
			Fields map[string]map[string]any `json:"fields"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		return got.Viewer, got.Upsell, got.Fields
	}

	out, err := run(t, "project", "--record", rec)
	require.NoError(t, err)
	viewer, upsell, fields := decode(out)
	assert.Equal(t, "free", viewer)
	assert.True(t, upsell)
	assert.Equal(t, "redacted", fields["phone"]["state"])
	assert.NotContains(t, out, "0102030405")
	assert.Equal(t, "visible", fields["title"]["state"])

	out, err = run(t, "project", "--plan", "premium", "--record", rec)
	require.NoError(t, err)
	viewer, upsell, fields = decode(out)
	assert.Equal(t, "premium", viewer)
	assert.False(t, upsell)
	assert.Equal(t, "0102030405", fields["phone"]["value"])
	assert.Equal(t, "absent", fields["charges"]["state"])

	out, err = run(t, "project", "--plan", "Premium", "--record", rec)
	require.NoError(t, err)
	viewer, _, _ = decode(out)
	assert.Equal(t, "free", viewer)
}

func TestProjectCmd_Errors(t *testing.T) {
	_, err := run(t, "project")
	require.ErrorContains(t, err, "--record is required")

	_, err = run(t, "project", "--record", writeFile(t, "bad.json", `[1,2]`))
	require.ErrorContains(t, err, "decode")

	_, err = run(t, "project", "--record", filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorContains(t, err, "read record")
}

func TestValidateCmd(t *testing.T) {
	full, err := fieldspec.MarshalYAML(fieldspec.Listing)
	require.NoError(t, err)
	out, err := run(t, "validate", writeFile(t, "ok.yaml", string(full)))
	require.NoError(t, err)
	assert.Contains(t, out, "ok (12 fields)")

	partial := writeFile(t, "partial.yaml", "version: 1\nfields:\n  - field: phone\n    tier: premium\n")
	_, err = run(t, "validate", partial)
	require.ErrorContains(t, err, "catalogue fields")

	_, err = run(t, "validate", writeFile(t, "typo.yaml", "version: 1\nfields:\n  - field: phone\n    teir: premium\n"))
	require.Error(t, err)

	_, err = run(t, "validate")
	require.Error(t, err)
}

func memoryUsers(t *testing.T) *users.Service {
	t.Helper()
	svc := users.NewService(users.NewMemoryUserRepository())
	prev := openUsers
	openUsers = func(ctx context.Context) (*users.Service, func(), error) {
		return svc, func() {}, nil
	}
	t.Cleanup(func() { openUsers = prev })
	return svc
}

func TestPlanCmd(t *testing.T) {
	svc := memoryUsers(t)
	ctx := context.Background()
	_, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "s1", "email": "a@example.com"})
	require.NoError(t, err)

	out, err := run(t, "plan", "get", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1\tstored=(none)\ttier=free\n", out)

	out, err = run(t, "plan", "set", "s1", "premium")
	require.NoError(t, err)
	assert.Contains(t, out, "tier=premium")
	plan, err := svc.PlanFor(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, "premium", *plan)

	// stored verbatim, granted only on the exact literal
	out, err = run(t, "plan", "set", "s1", "Premium")
	require.NoError(t, err)
	assert.Contains(t, out, "tier=free")
	out, err = run(t, "plan", "get", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1\tstored=\"Premium\"\ttier=free\n", out)

	_, err = run(t, "plan", "clear", "s1")
	require.NoError(t, err)
	plan, err = svc.PlanFor(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanCmd_Errors(t *testing.T) {
	memoryUsers(t)

	_, err := run(t, "plan", "set", "ghost", "premium")
	require.ErrorContains(t, err, "user not found")
	_, err = run(t, "plan", "get", "ghost")
	require.ErrorContains(t, err, "user not found")
	_, err = run(t, "plan", "set", "s1")
	require.Error(t, err)

	openUsers = func(ctx context.Context) (*users.Service, func(), error) {
		return nil, nil, errors.New("MONGODB_URI is not set")
	}
	_, err = run(t, "plan", "get", "s1")
	require.ErrorContains(t, err, "MONGODB_URI")
}

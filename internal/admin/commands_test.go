package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/server/config"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	migrated   bool
	closed     bool
	migrateErr error
	createErr  error
	setErr     error

	superusers []string
	users      []string
	fields     *services.UserFields
	passwords  map[string]string
}

func (f *fakeBackend) Migrate(context.Context) error {
	f.migrated = true
	return f.migrateErr
}

func (f *fakeBackend) CreateUser(_ context.Context, email, password string, fields *services.UserFields) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.users = append(f.users, email)
	f.fields = fields
	f.setPassword(email, password)
	return &models.User{Email: strings.ToLower(email), IsActive: true}, nil
}

func (f *fakeBackend) CreateSuperuser(_ context.Context, email, password string) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.superusers = append(f.superusers, email)
	f.setPassword(email, password)
	return &models.User{Email: strings.ToLower(email), IsActive: true, IsStaff: true, IsSuperuser: true}, nil
}

func (f *fakeBackend) SetPassword(_ context.Context, email, password string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.setPassword(email, password)
	return nil
}

func (f *fakeBackend) setPassword(email, password string) {
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[email] = password
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

// stubBackend swaps openBackend for the duration of the test and records
// the config the command opened it with.
func stubBackend(t *testing.T, b *fakeBackend) *config.Config {
	t.Helper()
	seen := &config.Config{}
	orig := openBackend
	openBackend = func(_ context.Context, cfg *config.Config) (Backend, error) {
		*seen = *cfg
		return b, nil
	}
	t.Cleanup(func() { openBackend = orig })
	return seen
}

// stubPasswords makes readPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		i++
		return []byte(answers[i-1]), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	b := &fakeBackend{}
	cfg := stubBackend(t, b)

	out, err := run(t, "", "migrate", "--dsn", "postgres://u:p@db:5432/recipes")
	require.NoError(t, err)
	assert.True(t, b.migrated)
	assert.True(t, b.closed)
	assert.Contains(t, out, "Migrations applied.")
	assert.Equal(t, "postgres://u:p@db:5432/recipes", cfg.DatabaseDSN)
}

func TestMigrate_Error(t *testing.T) {
	b := &fakeBackend{migrateErr: errors.New("boom")}
	stubBackend(t, b)

	_, err := run(t, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, b.closed)
}

func TestCreateSuperuser_Flags(t *testing.T) {
	b := &fakeBackend{}
	stubBackend(t, b)

	out, err := run(t, "", "createsuperuser", "--email", "Admin@Example.com", "--password", "secret123", "--no-input")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin@Example.com"}, b.superusers)
	assert.Equal(t, "secret123", b.passwords["Admin@Example.com"])
	assert.Contains(t, out, "Superuser admin@example.com created successfully.")
}

func TestCreateSuperuser_Prompts(t *testing.T) {
	b := &fakeBackend{}
	stubBackend(t, b)
	stubPasswords(t, "secret123", "secret123")

	out, err := run(t, "admin@example.com\n", "createsuperuser")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@example.com"}, b.superusers)
	assert.Equal(t, "secret123", b.passwords["admin@example.com"])
	assert.Contains(t, out, "Email address: ")
	assert.Contains(t, out, "Password (again): ")
}

func TestCreateSuperuser_InputErrors(t *testing.T) {
	tests := []struct {
		name      string
		stdin     string
		passwords []string
		args      []string
		wantErr   string
	}{
		{"mismatch", "a@b.com\n", []string{"secret123", "secret124"}, nil, "passwords do not match"},
		{"blank", "a@b.com\n", []string{"", ""}, nil, "blank passwords are not allowed"},
		{"too short", "a@b.com\n", []string{"abc", "abc"}, nil, "at least 5 characters"},
		{"no input without email", "", nil, []string{"--no-input", "--password", "secret123"}, "--email is required"},
		{"no input without password", "", nil, []string{"--no-input", "--email", "a@b.com"}, "--password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			stubBackend(t, b)
			stubPasswords(t, tt.passwords...)

			_, err := run(t, tt.stdin, append([]string{"createsuperuser"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, b.superusers)
		})
	}
}

func TestCreateSuperuser_Duplicate(t *testing.T) {
	b := &fakeBackend{createErr: fmt.Errorf("error creating user: %w", common.ErrUniqueViolation)}
	stubBackend(t, b)

	_, err := run(t, "", "createsuperuser", "--email", "a@b.com", "--password", "secret123")
	require.EqualError(t, err, "that email address is already taken")
}

func TestCreateUser(t *testing.T) {
	b := &fakeBackend{}
	stubBackend(t, b)

	out, err := run(t, "", "createuser", "--email", "cook@example.com", "--password", "secret123", "--name", "Cook", "--staff")
	require.NoError(t, err)
	assert.Equal(t, []string{"cook@example.com"}, b.users)
	require.NotNil(t, b.fields)
	assert.Equal(t, "Cook", b.fields.Name)
	require.NotNil(t, b.fields.IsStaff)
	assert.True(t, *b.fields.IsStaff)
	assert.Nil(t, b.fields.IsSuperuser)
	assert.Contains(t, out, "User cook@example.com created successfully.")
}

func TestChangePassword(t *testing.T) {
	b := &fakeBackend{}
	stubBackend(t, b)
	stubPasswords(t, "newpass123", "newpass123")

	out, err := run(t, "", "changepassword", "cook@example.com")
	require.NoError(t, err)
	assert.Equal(t, "newpass123", b.passwords["cook@example.com"])
	assert.Contains(t, out, "Password changed successfully for user cook@example.com.")
}

func TestChangePassword_UnknownUser(t *testing.T) {
	b := &fakeBackend{setErr: fmt.Errorf("error searching user: %w", common.ErrorNotFound)}
	stubBackend(t, b)
	stubPasswords(t, "newpass123", "newpass123")

	_, err := run(t, "", "changepassword", "ghost@example.com")
	require.EqualError(t, err, "user does not exist")
}

func TestChangePassword_RequiresEmail(t *testing.T) {
	stubBackend(t, &fakeBackend{})

	_, err := run(t, "", "changepassword")
	require.Error(t, err)
}

func TestOpen_ReportsConfigErrors(t *testing.T) {
	stubBackend(t, &fakeBackend{})

	_, err := run(t, "", "migrate", "-c", "/does/not/exist.yaml")
	require.Error(t, err)
}

package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learncenter/internal/apperr"
	"learncenter/internal/identity"
	"learncenter/internal/memstore"
	"learncenter/internal/user"
)

type fixture struct {
	resolver *identity.Resolver
	alice    user.User
	bob      user.User
	gone     user.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	users := memstore.NewUserStore(memstore.Open())

	create := func(name, phone string, active bool) user.User {
		u, err := users.CreateUser(ctx, user.User{FullName: name, PhoneNumber: phone, Role: user.RoleStudent, Active: active})
		require.NoError(t, err)
		return u
	}
	return fixture{
		resolver: identity.NewResolver(users),
		alice:    create("Alice", "01012345678", true),
		bob:      create("Bob", "01099998888", true),
		gone:     create("Gone", "01055554444", false),
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		ids      identity.Identifiers
		wantID   string
		wantKind apperr.Kind
	}{
		{name: "nothing", ids: identity.Identifiers{}, wantKind: apperr.KindValidation},
		{name: "by id", ids: identity.Identifiers{UserID: f.alice.ID}, wantID: f.alice.ID},
		{name: "by phone", ids: identity.Identifiers{PhoneNumber: "01012345678"}, wantID: f.alice.ID},
		{name: "by formatted phone", ids: identity.Identifiers{PhoneNumber: " 010-1234 5678 "}, wantID: f.alice.ID},
		{name: "id and phone agree", ids: identity.Identifiers{UserID: f.alice.ID, PhoneNumber: "01012345678"}, wantID: f.alice.ID},
		{name: "id and phone disagree", ids: identity.Identifiers{UserID: f.alice.ID, PhoneNumber: "01099998888"}, wantKind: apperr.KindAmbiguous},
		{name: "id wins over unknown phone", ids: identity.Identifiers{UserID: f.bob.ID, PhoneNumber: "0100000000"}, wantID: f.bob.ID},
		{name: "unknown id falls back to phone", ids: identity.Identifiers{UserID: "missing", PhoneNumber: "01099998888"}, wantID: f.bob.ID},
		{name: "unknown id", ids: identity.Identifiers{UserID: "missing"}, wantKind: apperr.KindNotFound},
		{name: "unknown phone", ids: identity.Identifiers{PhoneNumber: "0100000000"}, wantKind: apperr.KindNotFound},
		{name: "inactive user", ids: identity.Identifiers{UserID: f.gone.ID}, wantKind: apperr.KindNotFound},
		{name: "inactive user by phone", ids: identity.Identifiers{PhoneNumber: "01055554444"}, wantKind: apperr.KindNotFound},
		{
			name:   "qr payload",
			ids:    identity.Identifiers{QR: &identity.QRPayload{Type: identity.QRType, UserID: f.bob.ID}},
			wantID: f.bob.ID,
		},
		{
			name:   "qr with phone only",
			ids:    identity.Identifiers{QR: &identity.QRPayload{Type: identity.QRType, PhoneNumber: "01012345678"}},
			wantID: f.alice.ID,
		},
		{
			name:     "qr wrong type",
			ids:      identity.Identifiers{QR: &identity.QRPayload{Type: "payment", UserID: f.bob.ID}},
			wantKind: apperr.KindValidation,
		},
		{
			name:   "direct identifiers beat qr",
			ids:    identity.Identifiers{UserID: f.alice.ID, QR: &identity.QRPayload{Type: identity.QRType, UserID: f.bob.ID}},
			wantID: f.alice.ID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.resolver.Resolve(context.Background(), tt.ids)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, u.ID)
		})
	}
}

func TestParseQRPayload(t *testing.T) {
	p, err := identity.ParseQRPayload([]byte(` {"type":"attendance","userId":"u-1","phoneNumber":"010"} `))
	require.NoError(t, err)
	assert.Equal(t, identity.QRPayload{Type: "attendance", UserID: "u-1", PhoneNumber: "010"}, p)

	for _, raw := range []string{"", "not json", `{"type":"other","userId":"u-1"}`, `{"type":"attendance"}`} {
		_, err := identity.ParseQRPayload([]byte(raw))
		assert.True(t, apperr.Is(err, apperr.KindValidation), "input %q", raw)
	}
}

func TestEncodeQR(t *testing.T) {
	png, err := identity.EncodeQR(user.User{ID: "u-1", PhoneNumber: "01012345678"}, 128)
	require.NoError(t, err)
	require.True(t, len(png) > 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	assert.Equal(t, identity.QRPayload{Type: "attendance", UserID: "u-1", PhoneNumber: "01012345678"},
		identity.PayloadFor(user.User{ID: "u-1", PhoneNumber: "01012345678"}))
}

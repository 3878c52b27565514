package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	now := time.Now()
	usr := User{
		ID:        "5d5b6e0e-5a43-4bd5-9a2b-1f3f4c1d8a10",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")

	validToken := makeToken(usr)

	// generate an expired token
	dayLate := passwordResetTimeoutDelta + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := makeToken(usr)
	nowFunc = time.Now // reset

	// a new login invalidates previous tokens
	loggedIn := usr
	loggedIn.LastLogin = null.TimeFrom(now.Add(time.Hour))

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "stale token", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "5d5b6e0e-5a43-4bd5-9a2b-1f3f4c1d8a10"}
	id, err := decodeUID(EncodeUID(usr))
	assert.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}

package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	salt    = []byte("eventuais.core.user.token_gen")
	nowFunc = time.Now // mockable

	// set by NewService
	secretKey                 []byte
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// makeToken generates a password reset token for a given User.
func makeToken(usr User) string {
	return makeTokenWithTimestamp(usr, numDaysSince2001(nowFunc()))
}

// verifyToken checks that a password reset token for a given User is valid.
func verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(makeTokenWithTimestamp(usr, ts)), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(nowFunc()) - ts) > int(passwordResetTimeoutDelta/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(usr User, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, sign(hashValue(usr, ts)))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, salt...), secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// hashValue changes whenever the password or the last login changes, which invalidates older tokens.
func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if usr.LastLogin.Valid {
		val.WriteString(usr.LastLogin.Time.UTC().Truncate(time.Second).String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}

package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// initDataKey is the fixed outer HMAC key Telegram prescribes for Mini App
// init-data verification.
const initDataKey = "WebAppData"

// User is the authenticated Mini App user extracted from init data.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// InitData is the parsed, unverified payload. Callers must pair Parse with
// Validate; Parse alone proves nothing.
type InitData struct {
	User     *User
	AuthDate time.Time
	QueryID  string
}

// Validate checks the init-data signature against the bot token and, when
// maxAge is positive, rejects payloads whose auth_date is older than the
// threshold. It never returns an error: any malformed input is a failed
// validation.
func Validate(initData, botToken string, maxAge time.Duration) bool {
	return validateAt(initData, botToken, maxAge, time.Now())
}

func validateAt(initData, botToken string, maxAge time.Duration, now time.Time) bool {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return false
	}

	suppliedHash := values.Get("hash")
	if suppliedHash == "" {
		return false
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte(initDataKey))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(suppliedHash)) {
		return false
	}

	if maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return false
		}
		if now.Sub(time.Unix(authDate, 0)) > maxAge {
			return false
		}
	}

	return true
}

// Parse extracts the user and auth date from init data without verifying the
// signature. A malformed user field yields a nil user, not an error.
func Parse(initData string) (InitData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return InitData{}, err
	}

	parsed := InitData{QueryID: values.Get("query_id")}

	if raw := values.Get("auth_date"); raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			parsed.AuthDate = time.Unix(ts, 0)
		}
	}

	if raw := values.Get("user"); raw != "" {
		var user User
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID != 0 {
			parsed.User = &user
		}
	}

	return parsed, nil
}

package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

const testBotToken = "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"

func signInitData(t *testing.T, fields map[string]string, botToken string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func freshFields(now time.Time) map[string]string {
	return map[string]string{
		"auth_date": fmt.Sprintf("%d", now.Unix()),
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":      `{"id":99281932,"first_name":"Andrew","last_name":"Rogue","username":"rogue"}`,
	}
}

func TestValidateAcceptsSignedPayload(t *testing.T) {
	now := time.Now()
	initData := signInitData(t, freshFields(now), testBotToken)

	if !Validate(initData, testBotToken, 24*time.Hour) {
		t.Fatal("expected valid signature to be accepted")
	}
}

func TestValidateRejectsMutatedFields(t *testing.T) {
	now := time.Now()
	fields := freshFields(now)
	initData := signInitData(t, fields, testBotToken)

	// Flip one character in each field value in turn.
	for key, value := range fields {
		mutated := value[:len(value)-1] + string(value[len(value)-1]^1)
		values, err := url.ParseQuery(initData)
		if err != nil {
			t.Fatalf("parse signed payload: %v", err)
		}
		values.Set(key, mutated)
		if Validate(values.Encode(), testBotToken, 24*time.Hour) {
			t.Fatalf("mutation of %q was accepted", key)
		}
	}
}

func TestValidateRejectsMissingHash(t *testing.T) {
	if Validate("auth_date=1&user=%7B%7D", testBotToken, 0) {
		t.Fatal("payload without hash must be rejected")
	}
}

func TestValidateRejectsWrongToken(t *testing.T) {
	initData := signInitData(t, freshFields(time.Now()), testBotToken)
	if Validate(initData, "other:token", 24*time.Hour) {
		t.Fatal("signature from a different bot must be rejected")
	}
}

func TestValidateEnforcesMaxAge(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	initData := signInitData(t, freshFields(old), testBotToken)

	if Validate(initData, testBotToken, 24*time.Hour) {
		t.Fatal("stale auth_date must be rejected")
	}
	if !Validate(initData, testBotToken, 0) {
		t.Fatal("zero max age disables the freshness check")
	}
}

func TestParseExtractsUser(t *testing.T) {
	initData := signInitData(t, freshFields(time.Now()), testBotToken)

	parsed, err := Parse(initData)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.User == nil {
		t.Fatal("expected user")
	}
	if parsed.User.ID != 99281932 || parsed.User.Username != "rogue" {
		t.Fatalf("unexpected user %+v", parsed.User)
	}
	if parsed.AuthDate.IsZero() {
		t.Fatal("expected auth date")
	}
}

func TestParseMalformedUserYieldsNoUser(t *testing.T) {
	parsed, err := Parse("user=%7Bnot-json&auth_date=100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.User != nil {
		t.Fatalf("malformed user should yield nil, got %+v", parsed.User)
	}
}

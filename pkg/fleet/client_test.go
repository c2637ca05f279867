package fleet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

var testCreds = Credentials{APIKey: "key-1", ParkID: "park-1", ClientID: "client-1"}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithHTTPClient(&http.Client{Transport: rt}),
		WithBaseURL("http://fleet.test"),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	client, err := NewClient("http://fleet.test", time.Second, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestRequestCarriesCredentialHeaders(t *testing.T) {
	var captured http.Header
	var capturedPath string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req.Header.Clone()
		capturedPath = req.URL.Path
		return jsonResponse(http.StatusOK, `{"driver_profiles":[]}`), nil
	})

	if _, err := client.ListParkDrivers(context.Background(), testCreds, nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if captured.Get("X-API-Key") != "key-1" || captured.Get("X-Park-Id") != "park-1" || captured.Get("X-Client-ID") != "client-1" {
		t.Fatalf("credential headers missing: %v", captured)
	}
	if capturedPath != driverProfilesListPath {
		t.Fatalf("unexpected path %q", capturedPath)
	}
}

func TestValidateCredentialsRetriesThrottling(t *testing.T) {
	attempts := 0
	sleeps := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts <= 2 {
			return jsonResponse(http.StatusTooManyRequests, `{"error":"throttled"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"driver_profiles":[]}`), nil
	})
	client := newTestClient(t, rt, WithSleeper(func(time.Duration) { sleeps++ }))

	check := client.ValidateCredentials(context.Background(), testCreds)
	if !check.OK {
		t.Fatalf("expected success on third attempt, got %+v", check)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if sleeps != 2 {
		t.Fatalf("expected exactly 2 inter-request delays, got %d", sleeps)
	}
}

func TestExhaustedRetriesClassifiedTransient(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":"throttled"}`), nil
	})

	_, err := client.ListParkDrivers(context.Background(), testCreds, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstreamTransient {
		t.Fatalf("expected UPSTREAM_TRANSIENT, got %v", err)
	}
}

func TestAuthRejectionClassified(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(http.StatusUnauthorized, `{"error":"bad key"}`), nil
	})

	_, err := client.ListParkDrivers(context.Background(), testCreds, nil)
	if !IsAuthRejection(err) {
		t.Fatalf("expected auth rejection, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("401 must not be retried, got %d attempts", attempts)
	}
}

func TestRejectionCarriesTruncatedBody(t *testing.T) {
	long := strings.Repeat("x", 2000)
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, long), nil
	})

	_, err := client.ListParkDrivers(context.Background(), testCreds, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstreamRejected {
		t.Fatalf("expected UPSTREAM_REJECTED, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if body, _ := details["body"].(string); len(body) != 512 {
		t.Fatalf("expected body truncated to 512, got %d", len(body))
	}
}

func TestFindDriverByPhoneNormalizesAndScopes(t *testing.T) {
	var payload map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"driver_profiles":[{"id":"d1","first_name":"Ivan"}]}`), nil
	})

	profile, err := client.FindDriverByPhone(context.Background(), testCreds, "89991234567")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if profile == nil || profile.ID != "d1" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	query, _ := payload["query"].(map[string]any)
	if query == nil || query["text"] != "+79991234567" {
		t.Fatalf("expected normalized phone in query, got %v", payload)
	}
}

func TestFindDriverByPhoneEmptyResultIsNil(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"driver_profiles":[]}`), nil
	})

	profile, err := client.FindDriverByPhone(context.Background(), testCreds, "+79991234567")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil for empty result, got %+v", profile)
	}
}

func TestGetDriversStatusShortCircuits(t *testing.T) {
	called := false
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, `{}`), nil
	})

	statuses, err := client.GetDriversStatus(context.Background(), Credentials{}, []string{"d1"})
	if err != nil || len(statuses) != 0 {
		t.Fatalf("missing creds must yield empty map, got %v err %v", statuses, err)
	}
	statuses, err = client.GetDriversStatus(context.Background(), testCreds, nil)
	if err != nil || len(statuses) != 0 {
		t.Fatalf("no ids must yield empty map, got %v err %v", statuses, err)
	}
	if called {
		t.Fatal("no upstream call expected")
	}
}

func TestGetDriversStatusMapsResponse(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"statuses":[{"id":"d1","status":"working"},{"id":"d2","status":"fired"}]}`), nil
	})

	statuses, err := client.GetDriversStatus(context.Background(), testCreds, []string{"d1", "d2"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if statuses["d1"] != "working" || statuses["d2"] != "fired" {
		t.Fatalf("unexpected mapping %v", statuses)
	}
}

func TestGetContractorBlockedBalanceParsesDecimal(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"balances":[{"driver_id":"d1","blocked_balance":"1234.56"}]}`), nil
	})

	balance, err := client.GetContractorBlockedBalance(context.Background(), testCreds, "d1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.String() != "1234.56" {
		t.Fatalf("unexpected balance %s", balance)
	}
}

func TestGetContractorBlockedBalanceNotFound(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"balances":[]}`), nil
	})

	_, err := client.GetContractorBlockedBalance(context.Background(), testCreds, "d1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestNetworkFailureRetriedThenTransient(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		attempts++
		return nil, io.ErrUnexpectedEOF
	})

	_, err := client.ListParkDrivers(context.Background(), testCreds, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstreamTransient {
		t.Fatalf("expected UPSTREAM_TRANSIENT, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

package fleet

import (
	"context"
	"encoding/json"
	"strings"

	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	driverProfilesListPath = "/v1/parks/driver-profiles/list"
	driverStatusPath       = "/v1/parks/driver-profiles/status"
	balancesListPath       = "/v2/parks/driver-profiles/balances/list"
	workRulesListPath      = "/v1/parks/driver-work-rules/list"
	driverProfileUpdate    = "/v2/parks/contractors/driver-profile"
	carUpdatePath          = "/v2/parks/vehicles/car"
	parksListPath          = "/v1/parks/list"
)

// DriverProfile is the normalized upstream driver record.
type DriverProfile struct {
	ID         string
	FirstName  string
	LastName   string
	MiddleName string
	Phone      string
	WorkStatus string
	CarPlate   string
	CarModel   string
}

// DisplayName joins the trimmed name parts, omitting empty ones. Nil when
// both are empty.
func (p DriverProfile) DisplayName() *string {
	parts := make([]string, 0, 2)
	for _, part := range []string{p.FirstName, p.LastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	name := strings.Join(parts, " ")
	return &name
}

// CredentialCheck is the outcome of a live credential validation call.
type CredentialCheck struct {
	OK         bool
	StatusCode int
	Message    string
}

// WorkRule is an upstream payment/work rule entry.
type WorkRule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Park is an upstream fleet entry available to the credential bundle.
type Park struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// DriverPatch carries the mutable driver profile fields.
type DriverPatch struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	WorkRuleID *string `json:"work_rule_id,omitempty"`
}

// CarPatch carries the mutable vehicle fields.
type CarPatch struct {
	Plate *string `json:"number,omitempty"`
	Model *string `json:"model,omitempty"`
	Color *string `json:"color,omitempty"`
	Year  *string `json:"year,omitempty"`
}

type parkQuery struct {
	Park struct {
		ID string `json:"id"`
	} `json:"park"`
	Text string `json:"text,omitempty"`
}

func queryForPark(parkID, text string) parkQuery {
	q := parkQuery{Text: text}
	q.Park.ID = parkID
	return q
}

// ValidateCredentials issues a minimal list query. Any non-2xx is reported as
// a failed check carrying the status and localized message, not as an error.
func (c *Client) ValidateCredentials(ctx context.Context, creds Credentials) CredentialCheck {
	_, err := c.do(ctx, "validate_credentials", driverProfilesListPath, creds, listRequest{
		Query: queryForPark(creds.ParkID, ""),
		Limit: 1,
	})
	if err == nil {
		return CredentialCheck{OK: true}
	}

	check := CredentialCheck{OK: false, Message: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		check.Message = typed.Message()
		if details, ok := typed.Details().(map[string]any); ok {
			if status, ok := details["status"].(int); ok {
				check.StatusCode = status
			}
		}
	}
	return check
}

// FindDriverByPhone normalizes the phone and issues a text-search scoped to
// the park. Returns nil on an empty result set.
func (c *Client) FindDriverByPhone(ctx context.Context, creds Credentials, phone string) (*DriverProfile, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, "find_driver_by_phone", driverProfilesListPath, creds, listRequest{
		Query:  queryForPark(creds.ParkID, normalized),
		Fields: []string{"id", "first_name", "last_name", "middle_name", "phones", "work_status"},
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}

	profiles, _, err := parseDriverList(body, nil)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// GetDriversStatus batch-looks-up work statuses. Missing credentials or an
// empty id set silently yield an empty mapping.
func (c *Client) GetDriversStatus(ctx context.Context, creds Credentials, ids []string) (map[string]string, error) {
	if !creds.complete() || len(ids) == 0 {
		return map[string]string{}, nil
	}

	body, err := c.do(ctx, "drivers_status", driverStatusPath, creds, map[string]any{
		"query":  queryForPark(creds.ParkID, ""),
		"driver_ids": ids,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Statuses []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"statuses"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode status response")
	}

	result := make(map[string]string, len(resp.Statuses))
	for _, s := range resp.Statuses {
		if s.ID != "" {
			result[s.ID] = s.Status
		}
	}
	return result, nil
}

// ListParkDrivers fetches the park's drivers, tolerating the upstream's
// inconsistent envelope shapes. Parse anomalies are reported through diag,
// never as errors; an unrecognized envelope yields an empty list.
func (c *Client) ListParkDrivers(ctx context.Context, creds Credentials, diag DiagnosticsSink) ([]DriverProfile, error) {
	body, err := c.do(ctx, "list_drivers", driverProfilesListPath, creds, listRequest{
		Query:  queryForPark(creds.ParkID, ""),
		Fields: []string{"id", "first_name", "last_name", "middle_name", "phones", "work_status", "car"},
		Limit:  1000,
	})
	if err != nil {
		return nil, err
	}

	profiles, _, err := parseDriverList(body, diag)
	return profiles, err
}

// GetDriverProfileByID fetches a single driver profile.
func (c *Client) GetDriverProfileByID(ctx context.Context, creds Credentials, driverID string) (*DriverProfile, error) {
	body, err := c.do(ctx, "driver_profile", driverProfilesListPath, creds, map[string]any{
		"query":  queryForPark(creds.ParkID, ""),
		"driver_ids": []string{driverID},
		"limit":  1,
	})
	if err != nil {
		return nil, err
	}

	profiles, _, err := parseDriverList(body, nil)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found in park").
			WithDetails(map[string]string{"driver_id": driverID})
	}
	return &profiles[0], nil
}

// GetContractorBlockedBalance returns the driver's blocked balance. Balances
// arrive as serialized decimal strings.
func (c *Client) GetContractorBlockedBalance(ctx context.Context, creds Credentials, driverID string) (decimal.Decimal, error) {
	body, err := c.do(ctx, "blocked_balance", balancesListPath, creds, map[string]any{
		"query":  queryForPark(creds.ParkID, ""),
		"driver_ids": []string{driverID},
	})
	if err != nil {
		return decimal.Zero, err
	}

	var resp struct {
		Balances []struct {
			DriverID string `json:"driver_id"`
			Blocked  string `json:"blocked_balance"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode balance response")
	}

	for _, b := range resp.Balances {
		if b.DriverID != driverID {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(b.Blocked))
		if err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse blocked balance").
				WithDetails(map[string]string{"raw": b.Blocked})
		}
		return value, nil
	}
	return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "balance not found for driver").
		WithDetails(map[string]string{"driver_id": driverID})
}

// GetDriverWorkRules lists the park's work rules.
func (c *Client) GetDriverWorkRules(ctx context.Context, creds Credentials) ([]WorkRule, error) {
	body, err := c.do(ctx, "work_rules", workRulesListPath, creds, listRequest{
		Query: queryForPark(creds.ParkID, ""),
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Rules []WorkRule `json:"work_rules"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode work rules response")
	}
	return resp.Rules, nil
}

// UpdateDriverProfile applies a partial driver profile update.
func (c *Client) UpdateDriverProfile(ctx context.Context, creds Credentials, driverID string, patch DriverPatch) error {
	_, err := c.do(ctx, "update_driver", driverProfileUpdate, creds, map[string]any{
		"driver_id": driverID,
		"driver_profile": patch,
	})
	return err
}

// UpdateCar applies a partial vehicle update.
func (c *Client) UpdateCar(ctx context.Context, creds Credentials, carID string, patch CarPatch) error {
	_, err := c.do(ctx, "update_car", carUpdatePath, creds, map[string]any{
		"car_id": carID,
		"car":    patch,
	})
	return err
}

// GetFleetList lists the parks reachable with the credential bundle.
func (c *Client) GetFleetList(ctx context.Context, creds Credentials) ([]Park, error) {
	body, err := c.do(ctx, "fleet_list", parksListPath, creds, listRequest{})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Parks []Park `json:"parks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode parks response")
	}
	return resp.Parks, nil
}

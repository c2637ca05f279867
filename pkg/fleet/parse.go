package fleet

import (
	"encoding/json"
	"sort"
	"strings"

	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
)

// DiagnosticsSink receives side-channel observations made while parsing the
// upstream driver list. Callers use it to build operator-facing hints when
// the list comes back empty or partially unparsable; it never carries errors.
type DiagnosticsSink interface {
	EmptyResponseKeys(keys []string)
	ParseStats(raw, parsed int)
	UnparsedSample(sample json.RawMessage)
}

// ListDiagnostics is a plain collector implementing DiagnosticsSink.
type ListDiagnostics struct {
	EmptyKeys   []string
	RawCount    int
	ParsedCount int
	Sample      json.RawMessage
}

func (d *ListDiagnostics) EmptyResponseKeys(keys []string) { d.EmptyKeys = keys }

func (d *ListDiagnostics) ParseStats(raw, parsed int) {
	d.RawCount = raw
	d.ParsedCount = parsed
}

func (d *ListDiagnostics) UnparsedSample(sample json.RawMessage) {
	if d.Sample == nil {
		d.Sample = sample
	}
}

// listStrategy extracts the raw record array from one known envelope shape,
// or reports "not this shape".
type listStrategy struct {
	name    string
	extract func(envelope map[string]json.RawMessage) ([]json.RawMessage, bool)
}

// The upstream has shipped at least three envelope shapes: the record array at
// the top level, the same array nested under "data", and a fully empty object.
var listStrategies = []listStrategy{
	{
		name: "top_level",
		extract: func(envelope map[string]json.RawMessage) ([]json.RawMessage, bool) {
			return extractRecordArray(envelope)
		},
	},
	{
		name: "nested_data",
		extract: func(envelope map[string]json.RawMessage) ([]json.RawMessage, bool) {
			raw, ok := envelope["data"]
			if !ok {
				return nil, false
			}
			var nested map[string]json.RawMessage
			if err := json.Unmarshal(raw, &nested); err != nil {
				return nil, false
			}
			return extractRecordArray(nested)
		},
	},
	{
		name: "empty_object",
		extract: func(envelope map[string]json.RawMessage) ([]json.RawMessage, bool) {
			if len(envelope) == 0 {
				return []json.RawMessage{}, true
			}
			return nil, false
		},
	},
}

var recordArrayKeys = []string{"driver_profiles", "drivers", "items"}

func extractRecordArray(envelope map[string]json.RawMessage) ([]json.RawMessage, bool) {
	for _, key := range recordArrayKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			continue
		}
		return records, true
	}
	return nil, false
}

type rawCar struct {
	Plate string `json:"number"`
	Model string `json:"model"`
}

// rawDriverRecord tolerates both the flat profile shape and the nested
// {driver_profile: {...}, car: {...}} shape.
type rawDriverRecord struct {
	ID         string   `json:"id"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	MiddleName string   `json:"middle_name"`
	Phone      string   `json:"phone"`
	Phones     []string `json:"phones"`
	WorkStatus string   `json:"work_status"`

	DriverProfile *rawDriverRecord `json:"driver_profile"`
	Car           *rawCar          `json:"car"`
}

// parseDriverList decodes the upstream envelope, trying each shape strategy
// in order and aggregating diagnostics regardless of which (if any) matched.
// A JSON-invalid body is the only error case.
func parseDriverList(body []byte, diag DiagnosticsSink) ([]DriverProfile, string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode driver list envelope")
	}

	var records []json.RawMessage
	matched := ""
	for _, strategy := range listStrategies {
		if extracted, ok := strategy.extract(envelope); ok {
			records = extracted
			matched = strategy.name
			break
		}
	}

	profiles := make([]DriverProfile, 0, len(records))
	var sample json.RawMessage
	for _, raw := range records {
		profile, ok := parseDriverRecord(raw)
		if !ok {
			if sample == nil {
				sample = raw
			}
			continue
		}
		profiles = append(profiles, profile)
	}

	if diag != nil {
		if len(profiles) == 0 {
			diag.EmptyResponseKeys(sortedKeys(envelope))
		}
		diag.ParseStats(len(records), len(profiles))
		if sample != nil {
			diag.UnparsedSample(sample)
		}
	}

	return profiles, matched, nil
}

func parseDriverRecord(raw json.RawMessage) (DriverProfile, bool) {
	var record rawDriverRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return DriverProfile{}, false
	}

	car := record.Car
	if record.DriverProfile != nil {
		nested := *record.DriverProfile
		if nested.Car == nil {
			nested.Car = car
		}
		record = nested
		car = nested.Car
	}

	if record.ID == "" {
		return DriverProfile{}, false
	}

	profile := DriverProfile{
		ID:         record.ID,
		FirstName:  record.FirstName,
		LastName:   record.LastName,
		MiddleName: record.MiddleName,
		Phone:      record.Phone,
		WorkStatus: record.WorkStatus,
	}
	if profile.Phone == "" && len(record.Phones) > 0 {
		profile.Phone = record.Phones[0]
	}
	if car != nil {
		profile.CarPlate = car.Plate
		profile.CarModel = car.Model
	}
	return profile, true
}

func sortedKeys(envelope map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(envelope))
	for k := range envelope {
		keys = append(keys, strings.TrimSpace(k))
	}
	sort.Strings(keys)
	return keys
}

package fleet

import (
	"strings"

	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
)

// NormalizePhone canonicalizes a Russian phone number to +7XXXXXXXXXX.
// Ten-digit mobile numbers get the country code prepended; the national trunk
// prefix 8 is rewritten to the country-code form. The function is idempotent.
func NormalizePhone(phone string) (string, error) {
	digits := strings.Builder{}
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	switch {
	case len(d) == 10 && d[0] == '9':
		return "+7" + d, nil
	case len(d) == 11 && d[0] == '8':
		return "+7" + d[1:], nil
	case len(d) == 11 && d[0] == '7':
		return "+" + d, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number is not a valid mobile number").
		WithDetails(map[string]string{"phone": phone})
}

package home

import (
	"fmt"
	"regexp"
)

var tenantIDRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateTenantID checks that id conforms to tenant naming rules. Tenant
// ids become directory names and bus keys, so the charset is restricted.
func ValidateTenantID(id string) error {
	if !tenantIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid tenant id %q: must match ^[a-z0-9_-]{1,64}$", id)
	}
	return nil
}

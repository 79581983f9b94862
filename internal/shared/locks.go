package shared

import "fmt"

// ImportLockKey builds the redis key guarding one tenant's import run.
func ImportLockKey(organizationID string) string {
	return fmt.Sprintf("import:org:%s:lock", organizationID)
}

package authority

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Permissions []string

func (c Permissions) HasRole(role string) bool {
	for _, v := range c {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one of perms is held. An empty perms is always satisfied.
func (c Permissions) HasAny(perms ...string) bool {
	if len(perms) == 0 {
		return true
	}
	for _, p := range perms {
		if c.HasRole(p) {
			return true
		}
	}
	return false
}

// Normalize trims, de-duplicates and sorts the permissions. It never returns nil.
func (c Permissions) Normalize() Permissions {
	set := map[string]struct{}{}
	for _, v := range c {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = struct{}{}
		}
	}
	result := make(Permissions, 0, len(set))
	for v := range set {
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}

type ErrUnknownPermissions struct {
	Permissions []string
}

func (e *ErrUnknownPermissions) Error() string {
	return "unknown permissions: " + strings.Join(e.Permissions, ", ")
}

// Validate fails with *ErrUnknownPermissions when any permission is outside the catalog.
func (c Permissions) Validate() error {
	var unknown []string
	for _, v := range c {
		if !IsKnown(v) {
			unknown = append(unknown, v)
		}
	}
	if len(unknown) > 0 {
		return &ErrUnknownPermissions{Permissions: unknown}
	}
	return nil
}

func (c Permissions) Value() (driver.Value, error) {
	if c == nil {
		c = Permissions{}
	}
	jsonBytes, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func (c *Permissions) Scan(v interface{}) error {
	if v == nil {
		*c = Permissions{}
		return nil
	}
	jsonString, ok := v.(string)
	if !ok {
		jsonByte, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
		}
		jsonString = string(jsonByte)
	}
	if jsonString == "" {
		*c = Permissions{}
		return nil
	}
	if err := json.Unmarshal([]byte(jsonString), c); err != nil {
		return errors.New("malformed permissions column: " + err.Error())
	}
	return nil
}

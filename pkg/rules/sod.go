package rules

import (
	"fmt"

	"complyhq/sentinel/pkg/rules/condition"
)

// matchSOD flags records whose role set holds conflicting roles. With requiresAll the
// record must hold every conflicting role, otherwise any one of them.
func matchSOD(rule *Rule, records []Record) []match {
	p := &rule.Pattern
	if len(p.ConflictingRoles) == 0 {
		return nil
	}
	requiresAll := p.requiresAll()
	userField := p.userIDField()
	rolesField := p.rolesField()

	var matches []match
	for _, rec := range records {
		raw, _ := lookup(rec, rolesField)
		roles := coerceRoles(raw)

		held := make(map[string]struct{}, len(roles))
		for _, r := range roles {
			held[r] = struct{}{}
		}

		var present []string
		for _, cr := range p.ConflictingRoles {
			if _, ok := held[cr]; ok {
				present = append(present, cr)
			}
		}

		violated := len(present) > 0
		if requiresAll {
			violated = len(present) == len(p.ConflictingRoles)
		}
		if !violated {
			continue
		}

		userID, _ := lookup(rec, userField)
		matches = append(matches, match{
			"userId":           userID,
			"roles":            roles,
			"conflictingRoles": present,
			"requiresAll":      requiresAll,
		})
	}
	return matches
}

// coerceRoles turns a role collection of any shape into a string slice. Scalars
// become a one-element slice and missing values an empty one.
func coerceRoles(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		return val
	case string:
		return []string{val}
	case []any:
		roles := make([]string, 0, len(val))
		for _, item := range val {
			switch r := item.(type) {
			case nil:
			case string:
				roles = append(roles, r)
			default:
				roles = append(roles, fmt.Sprint(r))
			}
		}
		return roles
	default:
		return []string{fmt.Sprint(val)}
	}
}

// lookup resolves a dotted field path within a record.
func lookup(rec Record, path string) (any, bool) {
	return condition.Resolve(rec, splitPath(path)...)
}

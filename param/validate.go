package param

import "fmt"

// validate applies every declarative rule attached to def against the
// resolved value val, returning every violation rather than the first.
func validate(def Definition, val any) []*Error {
	var errs []*Error

	for _, rule := range def.Rules {
		if rule.MinLength != nil || rule.MaxLength != nil {
			s, ok := val.(string)
			if !ok {
				errs = append(errs, &Error{Kind: InvalidType, Param: def.Name, Message: "MinLength/MaxLength require a string value"})
			} else {
				if rule.MinLength != nil && len(s) < *rule.MinLength {
					errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("length %d is below minimum %d", len(s), *rule.MinLength)})
				}
				if rule.MaxLength != nil && len(s) > *rule.MaxLength {
					errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("length %d exceeds maximum %d", len(s), *rule.MaxLength)})
				}
			}
		}

		if rule.Min != nil || rule.Max != nil {
			f, ok := toFloat(val)
			if !ok {
				errs = append(errs, &Error{Kind: InvalidType, Param: def.Name, Message: "Min/Max require a numeric value"})
			} else {
				if rule.Min != nil && f < *rule.Min {
					errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("value %v is below minimum %v", f, *rule.Min)})
				}
				if rule.Max != nil && f > *rule.Max {
					errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("value %v exceeds maximum %v", f, *rule.Max)})
				}
			}
		}

		if len(rule.OneOf) > 0 {
			found := false
			for _, candidate := range rule.OneOf {
				if candidate == val {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("value %v is not one of the allowed values", val)})
			}
		}

		if rule.MinItems != nil || rule.MaxItems != nil {
			items, ok := val.([]any)
			if !ok {
				errs = append(errs, &Error{Kind: InvalidType, Param: def.Name, Message: "MinItems/MaxItems require an array value"})
			} else {
				if rule.MinItems != nil && len(items) < *rule.MinItems {
					errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("item count %d is below minimum %d", len(items), *rule.MinItems)})
				}
				if rule.MaxItems != nil && len(items) > *rule.MaxItems {
					errs = append(errs, &Error{Kind: ValidationFail, Param: def.Name, Message: fmt.Sprintf("item count %d exceeds maximum %d", len(items), *rule.MaxItems)})
				}
			}
		}

		// Pattern and Custom are intentionally not evaluated; see the
		// Definition.Rules doc comment.
	}

	return errs
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

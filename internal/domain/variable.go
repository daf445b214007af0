package domain

import "fmt"

// Variable identifies one of the six analysis indicators.
type Variable string

const (
	VarConfirmed Variable = "confirmed"
	VarDeaths    Variable = "deaths"
	VarTests     Variable = "tests"
	VarVaccines  Variable = "vaccines"
	VarHosp      Variable = "hosp"
	VarICU       Variable = "icu"
)

// Variables returns the analysis variables in their canonical column order.
func Variables() []Variable {
	return []Variable{VarConfirmed, VarDeaths, VarTests, VarVaccines, VarHosp, VarICU}
}

// Cumulative reports whether the variable is a running total that requires
// differencing to obtain daily increments. hosp and icu are point-in-time
// gauges; everything else is a counter.
func (v Variable) Cumulative() bool {
	switch v {
	case VarConfirmed, VarDeaths, VarTests, VarVaccines:
		return true
	default:
		return false
	}
}

// ParseVariable validates a column name against the known variable set.
func ParseVariable(s string) (Variable, error) {
	for _, v := range Variables() {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variable %q", s)
}

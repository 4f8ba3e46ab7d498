package capture

import "fmt"

// ParseKind maps a config string to an operator kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "conv":
		return KindConv, nil
	case "depthwise":
		return KindDepthwise, nil
	default:
		return 0, fmt.Errorf("capture: unknown operator kind %q", s)
	}
}

// ParsePattern maps a config string to a structural pattern. The empty
// string means any.
func ParsePattern(s string) (Pattern, error) {
	switch s {
	case "", "any":
		return PatternAny, nil
	case "expansion":
		return PatternExpansion, nil
	case "projection":
		return PatternProjection, nil
	case "spatial":
		return PatternSpatial, nil
	case "depthwise":
		return PatternDepthwise, nil
	default:
		return 0, fmt.Errorf("capture: unknown pattern %q", s)
	}
}

package metrics

import "strings"

const namePrefix = "hookline_"

// MetricName prepends the instance-wide prefix unless the name already
// carries it.
func MetricName(name string) string {
	if strings.HasPrefix(name, namePrefix) {
		return name
	}
	return namePrefix + name
}

// MetricNameWithSubsystem builds "<prefix><subsystem>_<name>", trimming stray
// underscores from the subsystem so callers can pass either form.
func MetricNameWithSubsystem(subsystem, name string) string {
	if strings.HasPrefix(name, namePrefix) {
		return name
	}
	subsystem = strings.Trim(subsystem, "_")
	switch {
	case subsystem == "":
		return MetricName(name)
	case name == "":
		return namePrefix + subsystem
	default:
		return namePrefix + subsystem + "_" + name
	}
}

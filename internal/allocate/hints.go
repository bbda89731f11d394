package allocate

import "github.com/hpungsan/reqlens/internal/requirement"

type domainHint struct {
	name     string
	keywords []string
}

// domainHints are checked in order. A hint fires when the candidate mentions
// one of its keywords and no existing subsystem already covers the domain.
var domainHints = []domainHint{
	{"Sensor Suite", []string{"sensor", "sensors", "camera", "lidar", "radar", "imaging", "infrared", "thermal imager"}},
	{"Communications Module", []string{"communication", "communications", "radio", "datalink", "data link", "telemetry", "antenna", "transmitter", "receiver"}},
	{"Navigation System", []string{"navigation", "gps", "gnss", "imu", "inertial", "waypoint", "waypoints", "positioning"}},
	{"AI Processing Unit", []string{"ai", "inference", "neural network", "machine learning", "object detection", "classifier", "accelerator"}},
	{"Power Distribution", []string{"power", "battery", "batteries", "voltage", "charging", "power supply"}},
	{"Propulsion System", []string{"propulsion", "motor", "motors", "thrust", "propeller", "rotor", "engine"}},
	{"Ground Control Station", []string{"ground control", "ground station", "gcs", "operator console"}},
}

func newSubsystemHint(text string, subs []Subsystem) (string, bool) {
	for _, h := range domainHints {
		if !mentionsAny(text, h.keywords) {
			continue
		}
		if coveredBy(h, subs) {
			continue
		}
		return h.name, true
	}
	return "", false
}

func coveredBy(h domainHint, subs []Subsystem) bool {
	hintKey := requirement.NormalizedKey(h.name)
	for _, s := range subs {
		if requirement.NormalizedKey(s.Name) == hintKey {
			return true
		}
		if mentionsAny(requirement.NormalizedKey(s.Name+" "+s.Description), h.keywords) {
			return true
		}
	}
	return false
}

func mentionsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if containsPhrase(text, kw) {
			return true
		}
	}
	return false
}

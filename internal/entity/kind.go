package entity

import "strings"

// Kind is the closed set of entity kinds the simulation knows how to drive.
type Kind uint8

const (
	KindStatic Kind = iota
	KindGroundVehicle
	KindTrailer
	KindHover
	KindAIFlyer
)

var kindNames = map[Kind]string{
	KindStatic:        "static",
	KindGroundVehicle: "groundVehicle",
	KindTrailer:       "trailer",
	KindHover:         "hover",
	KindAIFlyer:       "aiFlyer",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps a config string to a Kind. Unknown names are static.
func ParseKind(s string) (Kind, bool) {
	for k, n := range kindNames {
		if strings.EqualFold(n, s) {
			return k, true
		}
	}
	return KindStatic, false
}

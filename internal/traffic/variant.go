package traffic

// clientFieldIndex maps the semantic fields of a client line to their
// positions in the colon-delimited record. The positions are a versioned wire
// contract of each network's status-file format and must not be edited
// casually.
type clientFieldIndex struct {
	callsign     int
	networkID    int
	name         int
	clientType   int
	frequency    int
	latitude     int
	longitude    int
	altitude     int
	groundSpeed  int
	fpAircraft   int
	fpTAS        int
	fpDeparture  int
	fpAltitude   int
	fpArrival    int
	server       int
	protocol     int
	rating       int
	transponder  int
	facility     int
	visualRange  int
	fpRules      int
	fpDepTime    int
	fpActDepTime int
	fpHrsEnroute int
	fpMinEnroute int
	fpHrsFuel    int
	fpMinFuel    int
	fpAlternate  int
	fpRemarks    int
	fpRoute      int
	atis         int
	logonTime    int
	heading      int
}

// serverFieldIndex maps the semantic fields of a server line to their
// positions in the colon-delimited record.
type serverFieldIndex struct {
	identifier int
	hostname   int
	location   int
	name       int
}

// Variant describes one network's status-file dialect: its section markers,
// minimum field counts and field positions. Both supported networks share the
// legacy whazzup line structure and differ only at the edges.
type Variant struct {
	Name string

	GeneralSection string
	ClientsSection string
	ServersSection string
	PrefileSection string

	// PilotType and ControllerType are the accepted values of the client
	// type discriminator field.
	PilotType      string
	ControllerType string

	ClientFieldCount int // minimum fields on a client or prefile line
	ServerFieldCount int // minimum fields on a server line

	client clientFieldIndex
	server serverFieldIndex
}

// legacyClientIndex is the field layout shared by both dialects up to the
// flight-plan block. The trailing telemetry fields differ per network.
func legacyClientIndex(atis, logon, heading int) clientFieldIndex {
	return clientFieldIndex{
		callsign:     0,
		networkID:    1,
		name:         2,
		clientType:   3,
		frequency:    4,
		latitude:     5,
		longitude:    6,
		altitude:     7,
		groundSpeed:  8,
		fpAircraft:   9,
		fpTAS:        10,
		fpDeparture:  11,
		fpAltitude:   12,
		fpArrival:    13,
		server:       14,
		protocol:     15,
		rating:       16,
		transponder:  17,
		facility:     18,
		visualRange:  19,
		fpRules:      21,
		fpDepTime:    22,
		fpActDepTime: 23,
		fpHrsEnroute: 24,
		fpMinEnroute: 25,
		fpHrsFuel:    26,
		fpMinFuel:    27,
		fpAlternate:  28,
		fpRemarks:    29,
		fpRoute:      30,
		atis:         atis,
		logonTime:    logon,
		heading:      heading,
	}
}

// VATSIM is the VATSIM legacy data-file dialect.
var VATSIM = &Variant{
	Name:             "vatsim",
	GeneralSection:   "!GENERAL",
	ClientsSection:   "!CLIENTS",
	ServersSection:   "!SERVERS",
	PrefileSection:   "!PREFILE",
	PilotType:        "PILOT",
	ControllerType:   "ATC",
	ClientFieldCount: 42,
	ServerFieldCount: 5,
	client:           legacyClientIndex(35, 37, 38),
	server:           serverFieldIndex{identifier: 0, hostname: 1, location: 2, name: 3},
}

// IVAO is the IVAO whazzup dialect. The line structure matches VATSIM's
// through the flight-plan block; the trailing fields and the prefile section
// marker differ.
var IVAO = &Variant{
	Name:             "ivao",
	GeneralSection:   "!GENERAL",
	ClientsSection:   "!CLIENTS",
	ServersSection:   "!SERVERS",
	PrefileSection:   "!AIRPORTS",
	PilotType:        "PILOT",
	ControllerType:   "ATC",
	ClientFieldCount: 46,
	ServerFieldCount: 5,
	client:           legacyClientIndex(35, 37, 45),
	server:           serverFieldIndex{identifier: 0, hostname: 1, location: 2, name: 3},
}

// VariantByName resolves a network name from configuration to its dialect.
func VariantByName(name string) (*Variant, bool) {
	switch name {
	case "vatsim":
		return VATSIM, true
	case "ivao":
		return IVAO, true
	default:
		return nil, false
	}
}

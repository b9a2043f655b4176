package traffic

import (
	"strings"
	"time"
)

// ParseResult is everything a single status-file snapshot yielded: the typed
// records plus the per-line errors for lines that could not be parsed. Errors
// never abort a parse; a bad line costs only itself.
type ParseResult struct {
	Pilots              []*Pilot
	Controllers         []*Controller
	FlightNotifications []*FlightNotification
	Servers             []*Server
	Errors              []*ParseError
}

// Parser turns raw status-file text into typed records according to one
// network dialect.
type Parser struct {
	variant *Variant

	// Now supplies the reference instant for filed departure times. Tests
	// override it; callers normally leave it as time.Now.
	Now func() time.Time
}

// NewParser builds a parser for the given dialect.
func NewParser(variant *Variant) *Parser {
	return &Parser{
		variant: variant,
		Now:     time.Now,
	}
}

// Parse walks the status file line by line, tracking the current section and
// dispatching each data line to the matching record parser. Comment lines
// (leading ';') and blank lines are skipped. Parsing the same text twice
// yields identical results: the parser keeps no state across calls.
func (p *Parser) Parse(raw string) *ParseResult {
	result := &ParseResult{}
	now := p.Now().UTC()

	section := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if strings.HasPrefix(trimmed, "!") {
			section = trimmed
			continue
		}

		switch section {
		case p.variant.ClientsSection:
			p.parseClientLine(line, now, result)
		case p.variant.PrefileSection:
			p.parsePrefileLine(line, now, result)
		case p.variant.ServersSection:
			p.parseServerLine(line, result)
		}
		// Lines in the general section and unknown sections carry
		// nothing the pipeline consumes.
	}
	return result
}

func (p *Parser) parseClientLine(line string, now time.Time, result *ParseResult) {
	fields := strings.Split(line, ":")
	if len(fields) < p.variant.ClientFieldCount {
		result.Errors = append(result.Errors, &ParseError{
			Line:    line,
			Message: "malformed client line",
			Err:     &FieldCountError{Expected: p.variant.ClientFieldCount, Actual: len(fields)},
		})
		return
	}

	idx := p.variant.client
	switch fields[idx.clientType] {
	case p.variant.PilotType:
		pilot, err := p.parsePilot(fields, now)
		if err != nil {
			result.Errors = append(result.Errors, &ParseError{Line: line, Message: "malformed pilot line", Err: err})
			return
		}
		result.Pilots = append(result.Pilots, pilot)
	case p.variant.ControllerType:
		controller, err := p.parseController(fields)
		if err != nil {
			result.Errors = append(result.Errors, &ParseError{Line: line, Message: "malformed controller line", Err: err})
			return
		}
		result.Controllers = append(result.Controllers, controller)
	default:
		result.Errors = append(result.Errors, &ParseError{
			Line:    line,
			Message: "malformed client line",
			Err:     &UnknownClientTypeError{ClientType: fields[idx.clientType]},
		})
	}
}

func (p *Parser) parsePilot(fields []string, now time.Time) (*Pilot, error) {
	idx := p.variant.client

	var squawk Squawk
	if code := strings.TrimSpace(fields[idx.transponder]); code != "" {
		var err error
		squawk, err = ParseSquawk(code)
		if err != nil {
			return nil, err
		}
	}

	plan, err := p.parseFlightPlan(fields, now)
	if err != nil {
		return nil, err
	}

	client, err := p.parseClientIdentity(fields)
	if err != nil {
		return nil, err
	}

	return &Pilot{
		Client:      client,
		Latitude:    parseFloatOrZero(fields[idx.latitude]),
		Longitude:   parseFloatOrZero(fields[idx.longitude]),
		Altitude:    atoiOrZero(fields[idx.altitude]),
		GroundSpeed: atoiOrZero(fields[idx.groundSpeed]),
		Heading:     atoiOrZero(fields[idx.heading]),
		Squawk:      squawk,
		FlightPlan:  plan,
	}, nil
}

func (p *Parser) parseController(fields []string) (*Controller, error) {
	idx := p.variant.client
	client, err := p.parseClientIdentity(fields)
	if err != nil {
		return nil, err
	}
	return &Controller{
		Client:          client,
		Frequency:       strings.TrimSpace(fields[idx.frequency]),
		Rating:          Rating(atoiOrZero(fields[idx.rating])),
		Facility:        Facility(atoiOrZero(fields[idx.facility])),
		VisibilityRange: atoiOrZero(fields[idx.visualRange]),
		Atis:            strings.TrimSpace(fields[idx.atis]),
	}, nil
}

func (p *Parser) parseClientIdentity(fields []string) (Client, error) {
	idx := p.variant.client
	logon, err := ParseStatusDateTime(fields[idx.logonTime])
	if err != nil {
		return Client{}, err
	}
	return Client{
		Callsign:         strings.TrimSpace(fields[idx.callsign]),
		NetworkID:        strings.TrimSpace(fields[idx.networkID]),
		Name:             strings.TrimSpace(fields[idx.name]),
		Server:           strings.TrimSpace(fields[idx.server]),
		ProtocolRevision: atoiOrZero(fields[idx.protocol]),
		LogonTime:        logon,
	}, nil
}

// parseFlightPlan reads the flight-plan block of a client or prefile line. A
// plan only exists when the departure, arrival, route and filed altitude are
// all present; partial plans are treated as not filed.
func (p *Parser) parseFlightPlan(fields []string, now time.Time) (*FlightPlan, error) {
	idx := p.variant.client

	departure := strings.TrimSpace(fields[idx.fpDeparture])
	arrival := strings.TrimSpace(fields[idx.fpArrival])
	route := strings.TrimSpace(fields[idx.fpRoute])
	altitude := strings.TrimSpace(fields[idx.fpAltitude])
	if departure == "" || arrival == "" || route == "" || altitude == "" {
		return nil, nil
	}

	feet, err := ParseFlightPlanAltitude(altitude)
	if err != nil {
		return nil, err
	}

	enroute := time.Duration(atoiOrZero(fields[idx.fpHrsEnroute]))*time.Hour +
		time.Duration(atoiOrZero(fields[idx.fpMinEnroute]))*time.Minute
	fuel := time.Duration(atoiOrZero(fields[idx.fpHrsFuel]))*time.Hour +
		time.Duration(atoiOrZero(fields[idx.fpMinFuel]))*time.Minute

	return &FlightPlan{
		Rules:              flightRulesFromCode(strings.TrimSpace(fields[idx.fpRules])),
		AircraftType:       strings.TrimSpace(fields[idx.fpAircraft]),
		TrueAirSpeed:       strings.TrimSpace(fields[idx.fpTAS]),
		Altitude:           feet,
		DepartureICAO:      departure,
		ArrivalICAO:        arrival,
		AlternateICAO:      strings.TrimSpace(fields[idx.fpAlternate]),
		EstimatedDeparture: parseFlightPlanDateTime(fields[idx.fpDepTime], now),
		ActualDeparture:    parseFlightPlanDateTime(fields[idx.fpActDepTime], now),
		TimeEnroute:        enroute,
		FuelOnBoard:        fuel,
		Route:              route,
		Remarks:            strings.TrimSpace(fields[idx.fpRemarks]),
	}, nil
}

func (p *Parser) parsePrefileLine(line string, now time.Time, result *ParseResult) {
	fields := strings.Split(line, ":")
	if len(fields) < p.variant.ClientFieldCount {
		result.Errors = append(result.Errors, &ParseError{
			Line:    line,
			Message: "malformed prefile line",
			Err:     &FieldCountError{Expected: p.variant.ClientFieldCount, Actual: len(fields)},
		})
		return
	}

	plan, err := p.parseFlightPlan(fields, now)
	if err != nil {
		result.Errors = append(result.Errors, &ParseError{Line: line, Message: "malformed prefile line", Err: err})
		return
	}

	idx := p.variant.client
	result.FlightNotifications = append(result.FlightNotifications, &FlightNotification{
		Callsign:   strings.TrimSpace(fields[idx.callsign]),
		NetworkID:  strings.TrimSpace(fields[idx.networkID]),
		Name:       strings.TrimSpace(fields[idx.name]),
		FlightPlan: plan,
	})
}

func (p *Parser) parseServerLine(line string, result *ParseResult) {
	fields := strings.Split(line, ":")
	if len(fields) < p.variant.ServerFieldCount {
		result.Errors = append(result.Errors, &ParseError{
			Line:    line,
			Message: "malformed server line",
			Err:     &FieldCountError{Expected: p.variant.ServerFieldCount, Actual: len(fields)},
		})
		return
	}

	idx := p.variant.server
	result.Servers = append(result.Servers, &Server{
		NetworkIdentifier: strings.TrimSpace(fields[idx.identifier]),
		Name:              strings.TrimSpace(fields[idx.name]),
		IPAddress:         strings.TrimSpace(fields[idx.hostname]),
		Location:          strings.TrimSpace(fields[idx.location]),
	})
}

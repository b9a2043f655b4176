package traffic

import (
	"fmt"
	"time"
)

// FlightRules is the filed flight-rule category of a flight plan
type FlightRules int

const (
	IFR FlightRules = iota
	VFR
	IFRThenVFR // filed as "Y": IFR first, cancelling to VFR enroute
	VFRThenIFR // filed as "Z": VFR first, picking up IFR enroute
)

// flightRulesFromCode maps the single-letter wire code to a FlightRules value.
// Unrecognized codes default to IFR, matching the network's own treatment of
// malformed flight-type fields.
func flightRulesFromCode(code string) FlightRules {
	switch code {
	case "V":
		return VFR
	case "Y":
		return IFRThenVFR
	case "Z":
		return VFRThenIFR
	default:
		return IFR
	}
}

func (r FlightRules) String() string {
	switch r {
	case VFR:
		return "VFR"
	case IFRThenVFR:
		return "IFR-then-VFR"
	case VFRThenIFR:
		return "VFR-then-IFR"
	default:
		return "IFR"
	}
}

// Rating is a controller's network rating. The integer values are positional
// in the wire format and must not be reordered.
type Rating int

const (
	RatingObserver      Rating = 1
	RatingStudent1      Rating = 2
	RatingStudent2      Rating = 3
	RatingStudent3      Rating = 4
	RatingController1   Rating = 5
	RatingController2   Rating = 6
	RatingController3   Rating = 7
	RatingInstructor1   Rating = 8
	RatingInstructor2   Rating = 9
	RatingInstructor3   Rating = 10
	RatingSupervisor    Rating = 11
	RatingAdministrator Rating = 12
)

func (r Rating) String() string {
	names := map[Rating]string{
		RatingObserver:      "OBS",
		RatingStudent1:      "S1",
		RatingStudent2:      "S2",
		RatingStudent3:      "S3",
		RatingController1:   "C1",
		RatingController2:   "C2",
		RatingController3:   "C3",
		RatingInstructor1:   "I1",
		RatingInstructor2:   "I2",
		RatingInstructor3:   "I3",
		RatingSupervisor:    "SUP",
		RatingAdministrator: "ADM",
	}
	if n, ok := names[r]; ok {
		return n
	}
	return fmt.Sprintf("rating(%d)", int(r))
}

// Facility is the type of position a controller is staffing. The integer
// values are positional in the wire format and must not be reordered.
type Facility int

const (
	FacilityObserver Facility = iota
	FacilityFSS
	FacilityDelivery
	FacilityGround
	FacilityTower
	FacilityApproach
	FacilityCentre
)

func (f Facility) String() string {
	names := [...]string{"OBS", "FSS", "DEL", "GND", "TWR", "APP", "CTR"}
	if f >= 0 && int(f) < len(names) {
		return names[f]
	}
	return fmt.Sprintf("facility(%d)", int(f))
}

// Client holds the identity fields shared by pilots and controllers.
type Client struct {
	Callsign         string    `json:"callsign"`
	NetworkID        string    `json:"network_id"` // network-assigned user id (CID/VID)
	Name             string    `json:"name"`
	Server           string    `json:"server"` // identifier of the relay server the client is attached to
	ProtocolRevision int       `json:"protocol_revision"`
	LogonTime        time.Time `json:"logon_time"` // UTC instant the client connected
}

// TimeOnline returns how long the client has been connected as of now.
// It is always derived, never stored.
func (c *Client) TimeOnline(now time.Time) time.Duration {
	if c.LogonTime.IsZero() {
		return 0
	}
	return now.Sub(c.LogonTime)
}

// PositionPoint is one timestamped 3D point of a pilot's track history.
type PositionPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Altitude  int       `json:"altitude"` // feet
}

// Pilot is a connected pilot client with its current position, optional
// flight plan and the position history accumulated across refresh cycles.
type Pilot struct {
	Client
	Latitude    float64         `json:"lat"`
	Longitude   float64         `json:"lon"`
	Altitude    int             `json:"altitude"`     // feet
	GroundSpeed int             `json:"ground_speed"` // knots
	Heading     int             `json:"heading"`      // degrees magnetic, 0-359
	Squawk      Squawk          `json:"squawk"`
	FlightPlan  *FlightPlan     `json:"flight_plan,omitempty"`
	History     []PositionPoint `json:"history,omitempty"`
}

// Controller is a connected air-traffic controller client.
type Controller struct {
	Client
	Frequency       string   `json:"frequency"` // preserves leading zeros and formatting, not numeric
	Rating          Rating   `json:"rating"`
	Facility        Facility `json:"facility"`
	VisibilityRange int      `json:"visibility_range"` // nm
	Atis            string   `json:"atis,omitempty"`
}

// FlightPlan is a filed flight plan, owned by exactly one Pilot or
// FlightNotification.
type FlightPlan struct {
	Rules              FlightRules   `json:"rules"`
	AircraftType       string        `json:"aircraft_type"`
	TrueAirSpeed       string        `json:"true_air_speed"` // as filed, not strictly numeric
	Altitude           int           `json:"altitude"`       // feet, normalized from the filed altitude string
	DepartureICAO      string        `json:"departure"`
	ArrivalICAO        string        `json:"arrival"`
	AlternateICAO      string        `json:"alternate,omitempty"`
	EstimatedDeparture *time.Time    `json:"estimated_departure,omitempty"`
	ActualDeparture    *time.Time    `json:"actual_departure,omitempty"`
	TimeEnroute        time.Duration `json:"time_enroute_ns"`
	FuelOnBoard        time.Duration `json:"fuel_on_board_ns"`
	Route              string        `json:"route"`
	Remarks            string        `json:"remarks,omitempty"`
}

// ScheduledArrival returns the estimated arrival time when both the estimated
// departure and the enroute time are known, nil otherwise. It is always
// derived, never stored.
func (fp *FlightPlan) ScheduledArrival() *time.Time {
	if fp.EstimatedDeparture == nil || fp.TimeEnroute == 0 {
		return nil
	}
	t := fp.EstimatedDeparture.Add(fp.TimeEnroute)
	return &t
}

// FlightNotification is a pre-filed flight plan for a pilot who is not yet
// connected to the network.
type FlightNotification struct {
	Callsign   string      `json:"callsign"`
	NetworkID  string      `json:"network_id"`
	Name       string      `json:"name"`
	FlightPlan *FlightPlan `json:"flight_plan,omitempty"`
}

// Server is one of the network's relay servers.
type Server struct {
	NetworkIdentifier string `json:"network_identifier"` // natural key within a snapshot
	Name              string `json:"name"`
	IPAddress         string `json:"ip_address"`
	Location          string `json:"location"`
}

// TrafficData is one raw status-file snapshot together with its fetch
// metadata. It doubles as the append-only archive record.
type TrafficData struct {
	Raw          string        `json:"-"`
	Source       string        `json:"source"`
	DateReceived time.Time     `json:"date_received"`
	FetchTime    time.Duration `json:"fetch_time_ns"`
}

// NewTrafficData builds a TrafficData record, rejecting missing metadata.
func NewTrafficData(raw, source string, dateReceived time.Time, fetchTime time.Duration) (*TrafficData, error) {
	if source == "" {
		return nil, fmt.Errorf("traffic data source must not be empty")
	}
	if dateReceived.IsZero() {
		return nil, fmt.Errorf("traffic data receipt time must be set")
	}
	if fetchTime <= 0 {
		return nil, fmt.Errorf("traffic data fetch time must be positive")
	}
	return &TrafficData{
		Raw:          raw,
		Source:       source,
		DateReceived: dateReceived,
		FetchTime:    fetchTime,
	}, nil
}

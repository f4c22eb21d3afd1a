// Package responder defines the specialized responder variants, their
// capability tags, and the static intent routing table.
package responder

import "time"

// Variant identifies a specialized responder.
type Variant string

const (
	VariantBooking       Variant = "booking"
	VariantConcierge     Variant = "concierge"
	VariantGuestServices Variant = "guest_services"
	VariantActivities    Variant = "activities"
	VariantTriage        Variant = "triage"
)

// Capability tags what a variant is allowed to do. Tool access is granted
// per capability, never probed at runtime.
type Capability string

const (
	CapAvailability   Capability = "availability"
	CapReservation    Capability = "reservation"
	CapLocalArea      Capability = "local_area"
	CapWeather        Capability = "weather"
	CapServiceRequest Capability = "service_request"
	CapFacilities     Capability = "facilities"
	CapActivities     Capability = "activities"
	CapGeneral        Capability = "general"
)

// Intent is the accumulated conversation intent signal used for routing.
type Intent string

const (
	IntentBooking        Intent = "booking"
	IntentRecommendation Intent = "recommendation"
	IntentService        Intent = "service"
	IntentActivity       Intent = "activity"
	IntentGeneral        Intent = "general"
)

// capabilities maps each variant to its granted capability set.
var capabilities = map[Variant][]Capability{
	VariantBooking:       {CapAvailability, CapReservation, CapGeneral},
	VariantConcierge:     {CapLocalArea, CapWeather, CapFacilities, CapGeneral},
	VariantGuestServices: {CapServiceRequest, CapFacilities, CapGeneral},
	VariantActivities:    {CapActivities, CapWeather, CapGeneral},
	VariantTriage:        {CapGeneral},
}

// routingTable maps each intent to the variant that owns it. One variant
// per intent, Triage for general traffic.
var routingTable = map[Intent]Variant{
	IntentBooking:        VariantBooking,
	IntentRecommendation: VariantConcierge,
	IntentService:        VariantGuestServices,
	IntentActivity:       VariantActivities,
	IntentGeneral:        VariantTriage,
}

// requiredCapability maps each intent to the capability a variant must hold
// to handle it. Used for the mid-conversation handoff rule.
var requiredCapability = map[Intent]Capability{
	IntentBooking:        CapAvailability,
	IntentRecommendation: CapLocalArea,
	IntentService:        CapServiceRequest,
	IntentActivity:       CapActivities,
	IntentGeneral:        CapGeneral,
}

// VariantFor returns the variant responsible for the given intent.
func VariantFor(intent Intent) (Variant, bool) {
	v, ok := routingTable[intent]
	return v, ok
}

// Has reports whether the variant holds the given capability.
func (v Variant) Has(c Capability) bool {
	for _, got := range capabilities[v] {
		if got == c {
			return true
		}
	}
	return false
}

// Known reports whether v is one of the defined variants.
func (v Variant) Known() bool {
	_, ok := capabilities[v]
	return ok
}

// RequiredCapability returns the capability an intent demands of its handler.
func RequiredCapability(intent Intent) Capability {
	if c, ok := requiredCapability[intent]; ok {
		return c
	}
	return CapGeneral
}

// HandoffEvent records a mid-conversation reassignment between variants.
type HandoffEvent struct {
	From   Variant   `json:"from"`
	To     Variant   `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

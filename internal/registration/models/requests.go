package models

// CreateRegistrationRequest is the intake payload. Date and time arrive as
// separate strings and are combined into a single UTC instant at creation;
// nothing downstream ever re-parses them.
type CreateRegistrationRequest struct {
	Phone           string `json:"phone" validate:"required"`
	WebinarDate     string `json:"webinar_date" validate:"required"`
	WebinarTime     string `json:"webinar_time" validate:"required"`
	Name            string `json:"name"`
	MessageTemplate string `json:"message_template"`
}

// CreateRegistrationResponse acknowledges a created registration.
type CreateRegistrationResponse struct {
	Status string         `json:"status"`
	ID     RegistrationID `json:"id"`
}

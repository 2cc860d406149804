package events

// ClickRecorded is emitted for every click accepted by the accountant. The
// counter increment is applied before publish, so consumers only fold the
// event into analytics aggregates.
type ClickRecorded struct {
	EventID    string `json:"eventId"`
	Code       string `json:"code"`
	OccurredAt string `json:"occurredAt"`
}

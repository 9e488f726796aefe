package upstream

// StatusOK is the envelope status of a successful feed response.
const StatusOK = "OK"

// Response is the feed envelope.
type Response struct {
	Status string  `json:"status"`
	Data   []Event `json:"data"`
}

// Event is one record in a feed batch. Which fields are set depends on Cmd.
type Event struct {
	Cmd int    `json:"cmd"`
	Sid *int64 `json:"sid,omitempty"`
	D1  *int   `json:"d1,omitempty"`
	D2  *int   `json:"d2,omitempty"`
	D3  *int   `json:"d3,omitempty"`
}

// Dice returns the three dice and whether all of them were present.
func (e Event) Dice() ([3]int, bool) {
	if e.D1 == nil || e.D2 == nil || e.D3 == nil {
		return [3]int{}, false
	}
	return [3]int{*e.D1, *e.D2, *e.D3}, true
}

// Session returns the session id, or 0 when absent.
func (e Event) Session() int64 {
	if e.Sid == nil {
		return 0
	}
	return *e.Sid
}

// Package audit writes the tenant audit trail: price changes, data exports
// and session changes. Events are structured JSON lines under the
// "audit" logger so they can be shipped to a SIEM without parsing
// free-form messages.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// EventType categorizes audit events for filtering and alerting.
type EventType string

const (
	// EventPriceChange is logged for every recorded price movement.
	EventPriceChange EventType = "price_change"
	// EventPriceChangeReplay is logged when a request_key replays an
	// existing movement. Frequent replays point at a misbehaving client.
	EventPriceChangeReplay EventType = "price_change_replay"
	// EventReportExport is logged whenever tenant data leaves the service.
	EventReportExport EventType = "report_export"
	// EventSessionStarted and EventSessionEnded track the browser session.
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	UserID    int64     `json:"user_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Details   any       `json:"details,omitempty"`
	Severity  string    `json:"severity"` // info, warning
}

// PriceChangeDetails identifies the movement without repeating its notes.
type PriceChangeDetails struct {
	MovementID    int64  `json:"movement_id"`
	IngredientID  int64  `json:"ingredient_id"`
	PreviousPrice string `json:"previous_price"`
	NewPrice      string `json:"new_price"`
	EffectiveDate string `json:"effective_date"`
	RequestKey    string `json:"request_key,omitempty"`
}

// ExportDetails records which slice of the ledger was exported.
type ExportDetails struct {
	IngredientID *int64 `json:"ingredient_id,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	Recipes      int    `json:"recipes"`
	Ingredients  int    `json:"ingredients"`
	Movements    int    `json:"movements"`
}

// Auditor logs audit events. A nil *Auditor discards them.
type Auditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditor creates an auditor on a child logger named "audit".
func NewAuditor(logger *zap.Logger) *Auditor {
	return &Auditor{logger: logger.Named("audit"), now: time.Now}
}

// LogPriceChange records a price movement. Replays are logged at WARN.
func (a *Auditor) LogPriceChange(userID int64, movement *models.PriceMovement, replayed bool, clientIP string) {
	if a == nil || movement == nil {
		return
	}

	details := PriceChangeDetails{
		MovementID:    movement.ID,
		IngredientID:  movement.IngredientID,
		PreviousPrice: movement.PreviousPrice.StringFixed(2),
		NewPrice:      movement.NewPrice.StringFixed(2),
		EffectiveDate: movement.EffectiveDate.Format(time.DateOnly),
	}
	if movement.RequestKey != nil {
		details.RequestKey = movement.RequestKey.String()
	}

	if replayed {
		a.log(Event{EventType: EventPriceChangeReplay, UserID: userID, ClientIP: clientIP, Details: details, Severity: "warning"},
			"Price change replayed")
		return
	}
	a.log(Event{EventType: EventPriceChange, UserID: userID, ClientIP: clientIP, Details: details, Severity: "info"},
		"Price change recorded")
}

// LogReportExport records a report download.
func (a *Auditor) LogReportExport(userID int64, details ExportDetails, clientIP string) {
	if a == nil {
		return
	}
	a.log(Event{EventType: EventReportExport, UserID: userID, ClientIP: clientIP, Details: details, Severity: "info"},
		"Report exported")
}

// LogSession records a browser session change. userID is zero for a
// sign-out without a readable session.
func (a *Auditor) LogSession(eventType EventType, userID int64, clientIP string) {
	if a == nil {
		return
	}
	a.log(Event{EventType: eventType, UserID: userID, ClientIP: clientIP, Severity: "info"},
		"Session changed")
}

func (a *Auditor) log(event Event, msg string) {
	event.Timestamp = a.now().UTC()

	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.Int64("user_id", event.UserID),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", event.Severity),
	}
	if event.Severity == "warning" {
		a.logger.Warn(msg, fields...)
		return
	}
	a.logger.Info(msg, fields...)
}

package push

import (
	"context"
	"encoding/json"
	"fmt"

	"edziennik-backend/internal/components/assert"
	"edziennik-backend/internal/components/telemetry"
	"edziennik-backend/internal/db"
)

const (
	report_db_query          = "db.query"
	report_dispatcher_send   = "dispatcher.send"
	report_dispatcher_report = "dispatcher.report"
)

const DefaultIcon = "https://edziennik.ga/assets/icons/icon-512x512.png"

var defaultVibrate = []int{100, 50, 100}

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

type Notification struct {
	Actions []Action `json:"actions"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon"`
	Vibrate []int    `json:"vibrate"`
	Data    any      `json:"data"`
}

// Payload is what the service worker of the web app receives.
type Payload struct {
	Notification Notification `json:"notification"`
}

func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Destination is a single subscription a payload is delivered to.
type Destination struct {
	SubscriptionID int64
	Subscription   string
	Payload        Payload
}

// Report is the outcome of delivering to a single Destination.
type Report struct {
	Success bool
	// Unregistered means the subscription will never accept a delivery
	// again and should be forgotten.
	Unregistered bool
	Err          error
}

// Transport delivers a batch of payloads at once, the i-th report belongs
// to the i-th destination.
//
// note: fault injection point
type Transport interface {
	Send(ctx context.Context, batch []Destination) ([]Report, error)
}

type Options struct {
	// Icon defaults to DefaultIcon.
	Icon string
}

type Dispatcher struct {
	db        *db.Queries
	transport Transport
	icon      string
	tel       telemetry.API
}

func NewDispatcher(qry *db.Queries, transport Transport, opts Options, tel telemetry.API) Dispatcher {
	assert.NotNil(qry, "db")
	assert.NotNil(transport, "transport")
	assert.NotNil(tel, "telemetry")

	if opts.Icon == "" {
		opts.Icon = DefaultIcon
	}

	return Dispatcher{
		db:        qry,
		transport: transport,
		icon:      opts.Icon,
		tel:       telemetry.NewScopedAPI("push", tel),
	}
}

// SendToUser delivers the notification to every subscription of the user,
// it reports whether at least one of them accepted it.
func (d Dispatcher) SendToUser(ctx context.Context, login, title, body string, actions []Action, data any) bool {
	subscriptions, err := d.db.GetUserPush(ctx, login)
	if err != nil {
		d.tel.ReportBroken(report_db_query, err, "GetUserPush", login)
		return false
	}
	if len(subscriptions) == 0 {
		d.tel.ReportDebug("no subscriptions", login)
		return false
	}

	payload := Payload{Notification: Notification{
		Actions: actions,
		Title:   title,
		Body:    body,
		Icon:    d.icon,
		Vibrate: defaultVibrate,
		Data:    data,
	}}
	batch := make([]Destination, len(subscriptions))
	for i, sub := range subscriptions {
		batch[i] = Destination{
			SubscriptionID: sub.ID,
			Subscription:   sub.Subscription,
			Payload:        payload,
		}
	}

	reports, err := d.transport.Send(ctx, batch)
	if err != nil {
		d.tel.ReportBroken(report_dispatcher_send, err, login)
		return false
	}

	delivered := false
	for i, dest := range batch {
		if i >= len(reports) {
			d.tel.ReportWarning(report_dispatcher_report, fmt.Errorf("no report for subscription %d", dest.SubscriptionID), login)
			continue
		}
		report := reports[i]
		if report.Success {
			delivered = true
			d.tel.ReportDebug("delivered", login, dest.SubscriptionID)
			continue
		}

		d.tel.ReportWarning(report_dispatcher_report, report.Err, login, dest.SubscriptionID)
		if !report.Unregistered {
			continue
		}
		err := d.db.DeletePush(ctx, dest.SubscriptionID)
		if err != nil {
			d.tel.ReportBroken(report_db_query, err, "DeletePush", dest.SubscriptionID)
		}
	}

	return delivered
}

package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/infrastructure/mqtt"
)

// MQTTClient is the interface for publishing retained report messages.
// It is satisfied by *mqtt.Client.
type MQTTClient interface {
	PublishRetained(topic string, payload []byte) error
}

// MetricsWriter is the interface for recording cycle metrics.
// It is satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteSourceRefresh(source, status string, records, hints int, durationMS int64, ts time.Time)
	WriteCycle(totalDevices, errors, merged int, ts time.Time)
}

// SourceMessage is the retained payload published per source.
type SourceMessage struct {
	ReportID  string    `json:"report_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	SourceResult
}

// MQTTNotifier publishes every report to graylogic/catalog/report and each
// source result to graylogic/catalog/source/{id}, all retained.
type MQTTNotifier struct {
	client MQTTClient
}

// NewMQTTNotifier creates a notifier publishing through client.
func NewMQTTNotifier(client MQTTClient) *MQTTNotifier {
	return &MQTTNotifier{client: client}
}

// NotifyReport implements Notifier. Fusion results are left out of the
// report message to keep it under broker payload limits; they are
// available from the fusion history.
func (n *MQTTNotifier) NotifyReport(_ context.Context, r *Report) error {
	summary := *r
	summary.Fusion.Results = nil

	body, err := json.Marshal(&summary)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	topics := mqtt.Topics{}
	var errs []error
	if err := n.client.PublishRetained(topics.CatalogReport(), body); err != nil {
		errs = append(errs, fmt.Errorf("publishing report: %w", err))
	}

	for _, id := range sortedSources(r) {
		msg, err := json.Marshal(SourceMessage{
			ReportID:     r.ID,
			Source:       id,
			Timestamp:    r.Timestamp,
			SourceResult: r.Sources[id],
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("marshalling source %s: %w", id, err))
			continue
		}
		if err := n.client.PublishRetained(topics.CatalogSource(id), msg); err != nil {
			errs = append(errs, fmt.Errorf("publishing source %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// MetricsNotifier writes one catalog_source_refresh point per source and
// one catalog_cycle point per report.
type MetricsNotifier struct {
	writer MetricsWriter
}

// NewMetricsNotifier creates a notifier writing through w.
func NewMetricsNotifier(w MetricsWriter) *MetricsNotifier {
	return &MetricsNotifier{writer: w}
}

// NotifyReport implements Notifier. Writes are batched by the client, so
// this never blocks on the network.
func (n *MetricsNotifier) NotifyReport(_ context.Context, r *Report) error {
	for _, id := range sortedSources(r) {
		res := r.Sources[id]
		n.writer.WriteSourceRefresh(id, string(res.Status), res.Records, res.Hints, res.DurationMS, r.Timestamp)
	}
	n.writer.WriteCycle(r.TotalDevices, len(r.Errors), r.Fusion.Merged, r.Timestamp)
	return nil
}

func sortedSources(r *Report) []string {
	ids := make([]string, 0, len(r.Sources))
	for id := range r.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

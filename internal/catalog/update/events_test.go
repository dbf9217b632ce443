package update

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/fusion"
)

type publishedMessage struct {
	topic   string
	payload []byte
}

type fakeMQTT struct {
	messages []publishedMessage
	failOn   string
}

func (f *fakeMQTT) PublishRetained(topic string, payload []byte) error {
	if topic == f.failOn {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload})
	return nil
}

type refreshPoint struct {
	source, status string
	records, hints int
	durationMS     int64
}

type fakeMetrics struct {
	refreshes []refreshPoint
	cycles    [][3]int
}

func (f *fakeMetrics) WriteSourceRefresh(source, status string, records, hints int, durationMS int64, _ time.Time) {
	f.refreshes = append(f.refreshes, refreshPoint{source, status, records, hints, durationMS})
}

func (f *fakeMetrics) WriteCycle(totalDevices, errs, merged int, _ time.Time) {
	f.cycles = append(f.cycles, [3]int{totalDevices, errs, merged})
}

func eventReport() *Report {
	r := newReport("rep-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), false)
	r.Sources["zha"] = SourceResult{Status: StatusSuccess, Records: 5, Hints: 1, DurationMS: 40}
	r.fail("broken", SourceResult{DurationMS: 12}, errors.New("status 500"))
	r.TotalDevices = 42
	r.Fusion = FusionSummary{Groups: 1, Merged: 1, Retired: 1, Results: []fusion.Result{{ID: "m1", CanonicalID: "wall_switch_2gang_ac"}}}
	return r
}

func TestMQTTNotifier_PublishesReportAndSources(t *testing.T) {
	client := &fakeMQTT{}
	if err := NewMQTTNotifier(client).NotifyReport(context.Background(), eventReport()); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}

	wantTopics := []string{
		"graylogic/catalog/report",
		"graylogic/catalog/source/broken",
		"graylogic/catalog/source/zha",
	}
	if len(client.messages) != len(wantTopics) {
		t.Fatalf("published %d messages, want %d", len(client.messages), len(wantTopics))
	}
	for i, want := range wantTopics {
		if client.messages[i].topic != want {
			t.Errorf("message[%d].topic = %q, want %q", i, client.messages[i].topic, want)
		}
	}

	var rep Report
	if err := json.Unmarshal(client.messages[0].payload, &rep); err != nil {
		t.Fatalf("report payload: %v", err)
	}
	if rep.ID != "rep-1" || rep.Fusion.Merged != 1 || len(rep.Fusion.Results) != 0 {
		t.Errorf("report payload = %+v, want fusion results stripped", rep)
	}

	var msg SourceMessage
	if err := json.Unmarshal(client.messages[1].payload, &msg); err != nil {
		t.Fatalf("source payload: %v", err)
	}
	if msg.Source != "broken" || msg.ReportID != "rep-1" || msg.Status != StatusFailed || msg.Error != "status 500" {
		t.Errorf("source payload = %+v", msg)
	}
}

func TestMQTTNotifier_ContinuesAfterPublishError(t *testing.T) {
	client := &fakeMQTT{failOn: "graylogic/catalog/report"}
	err := NewMQTTNotifier(client).NotifyReport(context.Background(), eventReport())
	if err == nil {
		t.Fatal("NotifyReport() error = nil, want publish failure")
	}
	if len(client.messages) != 2 {
		t.Errorf("published %d source messages, want 2", len(client.messages))
	}
}

func TestMetricsNotifier(t *testing.T) {
	m := &fakeMetrics{}
	if err := NewMetricsNotifier(m).NotifyReport(context.Background(), eventReport()); err != nil {
		t.Fatalf("NotifyReport() error = %v", err)
	}

	want := []refreshPoint{
		{"broken", "failed", 0, 0, 12},
		{"zha", "success", 5, 1, 40},
	}
	if len(m.refreshes) != len(want) {
		t.Fatalf("refreshes = %+v", m.refreshes)
	}
	for i := range want {
		if m.refreshes[i] != want[i] {
			t.Errorf("refresh[%d] = %+v, want %+v", i, m.refreshes[i], want[i])
		}
	}
	if len(m.cycles) != 1 || m.cycles[0] != [3]int{42, 1, 1} {
		t.Errorf("cycles = %v, want [[42 1 1]]", m.cycles)
	}
}

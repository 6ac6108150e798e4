package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"steadyrate/internal/runner"
	"steadyrate/internal/stats"
)

// ExportCSV exports outcomes to a JMeter-compatible CSV file.
// Schema: timeStamp,elapsed,label,responseCode,responseMessage,threadName,success,failureMessage,bytes,URL,Latency,IdleTime,status
func ExportCSV(outcomes []stats.Outcome, url, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"threadName", "success", "failureMessage", "bytes", "URL",
		"Latency", "IdleTime", "status",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, o := range outcomes {
		ts := o.Timestamp
		if ts.IsZero() {
			ts = o.ScheduledAt
		}
		thread := "dropped"
		if o.VU >= 0 {
			thread = "VU-" + strconv.Itoa(o.VU)
		}
		record := []string{
			strconv.FormatInt(ts.UnixMilli(), 10),
			strconv.FormatInt(o.Duration.Milliseconds(), 10),
			"steadyrate request",
			strconv.Itoa(o.StatusCode),
			http.StatusText(o.StatusCode),
			thread,
			strconv.FormatBool(o.Status == stats.StatusSuccess),
			o.Error,
			strconv.FormatInt(o.Bytes, 10),
			url,
			strconv.FormatInt(o.RequestDuration.Milliseconds(), 10),
			strconv.FormatInt(o.QueueWait.Milliseconds(), 10),
			o.Status.String(),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ExportJSON exports outcomes to a JSON file.
func ExportJSON(outcomes []stats.Outcome, filename string) error {
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ExportSummary writes the run digest to prefix_summary.json.
func ExportSummary(rep *runner.Report, prefix string) error {
	data, err := json.MarshalIndent(Summarize(rep), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(prefix+"_summary.json", data, 0644)
}

// ExportAll writes prefix.csv, prefix.json and prefix_summary.json.
func ExportAll(rep *runner.Report, prefix string) error {
	if err := ExportCSV(rep.Samples, rep.Config.Request.URL, prefix+".csv"); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	if err := ExportJSON(rep.Samples, prefix+".json"); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	if err := ExportSummary(rep, prefix); err != nil {
		return fmt.Errorf("export summary: %w", err)
	}
	return nil
}

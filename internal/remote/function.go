package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
)

// LambdaAPI is the part of the Lambda client the function submitter uses.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// SyncRequest is the payload of the batch sync function.
type SyncRequest struct {
	LocalData []SyncEntry `json:"localData"`
}

// SyncEntry is one record in the wire format the sync function accepts.
type SyncEntry struct {
	UnitType        string             `json:"unitType"`
	EquipmentID     string             `json:"equipmentId"`
	MeasurementDate string             `json:"measurementDate"`
	Parameters      map[string]float64 `json:"parameters"`
	Notes           string             `json:"notes"`
	UserID          string             `json:"userId"`
	UserName        string             `json:"userName"`
	LocalTimestamp  string             `json:"localTimestamp"`
}

func NewSyncEntry(r domain.MeasurementRecord) SyncEntry {
	return SyncEntry{
		UnitType:        string(r.Unit),
		EquipmentID:     r.Equipment,
		MeasurementDate: r.Date,
		Parameters:      r.Parameters,
		Notes:           r.Notes,
		UserID:          r.UserID,
		UserName:        r.UserName,
		LocalTimestamp:  r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Record converts the entry back into a measurement record with status pending.
func (e SyncEntry) Record() (domain.MeasurementRecord, error) {
	r := domain.MeasurementRecord{
		Unit:       domain.Unit(e.UnitType),
		Equipment:  e.EquipmentID,
		Date:       e.MeasurementDate,
		Parameters: e.Parameters,
		Notes:      e.Notes,
		UserID:     e.UserID,
		UserName:   e.UserName,
		SyncStatus: domain.StatusPending,
	}
	if e.LocalTimestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, e.LocalTimestamp)
		if err != nil {
			return r, fmt.Errorf("decode local timestamp: %w", err)
		}
		r.Timestamp = ts
	}
	r.ID = r.Key()
	return r, nil
}

// FunctionSubmitter sends batches through a hosted sync function and reads
// everything else from the wrapped transport. The function does not publish,
// so accepted records are announced here once the batch is acknowledged.
type FunctionSubmitter struct {
	Transport
	svc       LambdaAPI
	function  string
	publisher Publisher
}

func NewFunctionSubmitter(svc LambdaAPI, function string, reads Transport, publisher Publisher) *FunctionSubmitter {
	return &FunctionSubmitter{Transport: reads, svc: svc, function: function, publisher: publisher}
}

func (f *FunctionSubmitter) SubmitBatch(ctx context.Context, records []domain.MeasurementRecord) (BatchResult, error) {
	req := SyncRequest{LocalData: make([]SyncEntry, len(records))}
	for i, r := range records {
		req.LocalData[i] = NewSyncEntry(r)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return BatchResult{}, &domain.RemoteError{Kind: domain.KindUnknown, Op: "submit batch", Err: err}
	}

	out, err := f.svc.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(f.function),
		Payload:        payload,
		InvocationType: types.InvocationTypeRequestResponse,
	})
	if err != nil {
		return BatchResult{}, &domain.RemoteError{Kind: classifyAWS(err), Op: "submit batch", Err: err}
	}
	if out.FunctionError != nil {
		return BatchResult{}, &domain.RemoteError{
			Kind: domain.KindUnknown,
			Op:   "submit batch",
			Err:  fmt.Errorf("sync function error %s: %s", aws.ToString(out.FunctionError), out.Payload),
		}
	}

	var res BatchResult
	if err := json.Unmarshal(out.Payload, &res); err != nil {
		return BatchResult{}, &domain.RemoteError{Kind: domain.KindUnknown, Op: "submit batch", Err: fmt.Errorf("decode sync response: %w", err)}
	}
	f.announce(ctx, records, res)
	return res, nil
}

func (f *FunctionSubmitter) announce(ctx context.Context, records []domain.MeasurementRecord, res BatchResult) {
	if f.publisher == nil {
		return
	}
	rejected := res.Rejected()
	inserted := make(map[string]bool, len(res.Inserted))
	for _, id := range res.Inserted {
		inserted[id] = true
	}
	for _, r := range records {
		saved := r.Clone()
		remoteOnly(&saved)
		if rejected[saved.ID] {
			continue
		}
		ev := domain.ChangeEvent{EventType: domain.ChangeUpdate, Record: saved}
		if inserted[saved.ID] {
			ev.EventType = domain.ChangeInsert
		}
		publish(ctx, f.publisher, ev)
	}
}

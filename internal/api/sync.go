package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	dbsync "github.com/marin/daybook/internal/sync"
)

const maxPushBatch = 1000

// PushRequest is the JSON body for POST /v1/sync/push.
type PushRequest struct {
	Records []PushRecordInput `json:"records"`
}

// PushRecordInput represents a single record mutation in a push request.
type PushRecordInput struct {
	TableName     string          `json:"table_name"`
	RecordID      string          `json:"record_id"`
	Operation     string          `json:"operation"`
	ClientVersion int64           `json:"client_version"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// RecordResultResponse is the per-record outcome in a push response.
type RecordResultResponse struct {
	TableName   string `json:"table_name"`
	RecordID    string `json:"record_id"`
	Success     bool   `json:"success"`
	NewVersion  int64  `json:"new_version,omitempty"`
	HasConflict bool   `json:"has_conflict,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ConflictResponse describes a push rejected by the server's version.
type ConflictResponse struct {
	TableName        string          `json:"table_name"`
	RecordID         string          `json:"record_id"`
	ClientVersion    int64           `json:"client_version"`
	ServerVersion    int64           `json:"server_version"`
	ServerData       json.RawMessage `json:"server_data,omitempty"`
	ClientData       json.RawMessage `json:"client_data,omitempty"`
	IsDeleteConflict bool            `json:"is_delete_conflict"`
	Resolution       string          `json:"resolution"`
}

// PushResponse is the JSON response for a push request.
type PushResponse struct {
	Results      []RecordResultResponse `json:"results"`
	Conflicts    []ConflictResponse     `json:"conflicts"`
	SyncedAt     string                 `json:"synced_at"`
	HasConflicts bool                   `json:"has_conflicts"`
}

// DeltaRecord is a single change in a delta response. Data is present for
// INSERT/UPDATE and absent for DELETE tombstones.
type DeltaRecord struct {
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	Operation string          `json:"operation"`
	ChangedAt string          `json:"changed_at"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DeltaResponse is the JSON response for a delta request.
type DeltaResponse struct {
	Records  []DeltaRecord `json:"records"`
	SyncedAt string        `json:"synced_at"`
}

// SnapshotResponse is the JSON response for a full snapshot request.
type SnapshotResponse struct {
	Data         map[string][]dbsync.SnapshotRecord `json:"data"`
	DownloadedAt string                             `json:"downloaded_at"`
	Tables       []string                           `json:"tables"`
	RecordCounts map[string]int                     `json:"record_counts"`
}

// validatePushRecord checks one record's structure. A failure rejects the
// whole request; unknown table names are deliberately not checked here —
// they become per-record error outcomes in the engine.
func validatePushRecord(i int, rec PushRecordInput) error {
	if rec.TableName == "" {
		return fmt.Errorf("records[%d]: table_name is required", i)
	}
	if rec.RecordID == "" {
		return fmt.Errorf("records[%d]: record_id is required", i)
	}
	if !dbsync.ValidOperation(rec.Operation) {
		return fmt.Errorf("records[%d]: invalid operation: %q", i, rec.Operation)
	}
	if rec.Operation != dbsync.OpDelete {
		if len(rec.Data) == 0 {
			return fmt.Errorf("records[%d]: data is required for %s", i, rec.Operation)
		}
		if dbsync.ValidTable(rec.TableName) {
			if _, err := dbsync.CanonicalPayload(rec.TableName, rec.Data); err != nil {
				return fmt.Errorf("records[%d]: %v", i, err)
			}
		}
	}
	return nil
}

// handlePush handles POST /v1/sync/push.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}

	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "records array is empty")
		return
	}
	if len(req.Records) > maxPushBatch {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(req.Records), maxPushBatch))
		return
	}

	// One structurally invalid record rejects the entire request.
	for i, rec := range req.Records {
		if err := validatePushRecord(i, rec); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
	}

	records := make([]dbsync.PushRecord, len(req.Records))
	for i, rec := range req.Records {
		records[i] = dbsync.PushRecord{
			Table:         rec.TableName,
			RecordID:      rec.RecordID,
			Operation:     rec.Operation,
			ClientVersion: rec.ClientVersion,
			Data:          rec.Data,
		}
	}

	tx, err := s.store.Begin()
	if err != nil {
		logFor(r.Context()).Error("begin tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
		return
	}
	defer tx.Rollback()

	result, err := dbsync.ApplyPush(tx, user.UserID, records)
	if err != nil {
		logFor(r.Context()).Error("apply push", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to apply push")
		return
	}

	if err := tx.Commit(); err != nil {
		logFor(r.Context()).Error("commit tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to commit")
		return
	}

	var accepted int64
	resp := PushResponse{
		Results:   make([]RecordResultResponse, len(result.Results)),
		Conflicts: []ConflictResponse{},
		SyncedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	for i, rr := range result.Results {
		if rr.Success {
			accepted++
		}
		resp.Results[i] = RecordResultResponse{
			TableName:   rr.Table,
			RecordID:    rr.RecordID,
			Success:     rr.Success,
			NewVersion:  rr.NewVersion,
			HasConflict: rr.HasConflict,
			Error:       rr.Err,
		}
	}
	for _, c := range result.Conflicts {
		resp.Conflicts = append(resp.Conflicts, ConflictResponse{
			TableName:        c.Table,
			RecordID:         c.RecordID,
			ClientVersion:    c.ClientVersion,
			ServerVersion:    c.ServerVersion,
			ServerData:       c.ServerData,
			ClientData:       c.ClientData,
			IsDeleteConflict: c.IsDeleteConflict,
			Resolution:       "server_wins",
		})
	}
	resp.HasConflicts = len(resp.Conflicts) > 0

	s.metrics.RecordPushedRecords(accepted)
	s.metrics.RecordConflicts(int64(len(resp.Conflicts)))

	// Partial outcomes ride on the status code: 409 when anything conflicted,
	// 200 otherwise. Clients must still inspect results per record.
	status := http.StatusOK
	if resp.HasConflicts {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

// handleDelta handles GET /v1/sync/delta.
func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordDeltaRequest()
	user := getUserFromContext(r.Context())

	sinceParam := r.URL.Query().Get("since")
	if sinceParam == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "since parameter is required")
		return
	}
	since, err := time.Parse(time.RFC3339, sinceParam)
	if err != nil {
		since, err = time.Parse(time.RFC3339Nano, sinceParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid since timestamp")
			return
		}
	}

	tx, err := s.store.Begin()
	if err != nil {
		logFor(r.Context()).Error("begin tx", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "database error")
		return
	}
	defer tx.Rollback()

	entries, err := dbsync.ReadDelta(tx, user.UserID, since)
	if err != nil {
		logFor(r.Context()).Error("read delta", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to read changes")
		return
	}

	tx.Rollback() // read-only, just release

	resp := DeltaResponse{
		Records:  make([]DeltaRecord, len(entries)),
		SyncedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for i, e := range entries {
		resp.Records[i] = DeltaRecord{
			TableName: e.Table,
			RecordID:  e.RecordID,
			Operation: e.Operation,
			ChangedAt: e.ChangedAt.Format(time.RFC3339Nano),
			Version:   e.Version,
			Data:      e.Data,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSnapshot handles GET /v1/sync/snapshot. Full dump for bootstrap or
// lost-checkpoint recovery; not a steady-state polling endpoint.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordSnapshotRequest()
	user := getUserFromContext(r.Context())

	snap, err := dbsync.ExportSnapshot(s.store.Conn(), user.UserID)
	if err != nil {
		logFor(r.Context()).Error("export snapshot", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to export snapshot")
		return
	}

	writeJSON(w, http.StatusOK, SnapshotResponse{
		Data:         snap.Tables,
		DownloadedAt: time.Now().UTC().Format(time.RFC3339),
		Tables:       dbsync.Tables(),
		RecordCounts: snap.Counts,
	})
}

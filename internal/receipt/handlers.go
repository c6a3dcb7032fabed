package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/zombor/receipt-pipeline/internal/logger"
)

const (
	uploadMethods = "OPTIONS,POST"
	readMethods   = "GET,OPTIONS"
	eventMethods  = "POST"

	// maxEventBody bounds webhook payloads; S3 event records are small
	maxEventBody = 1 << 20
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeJSON writes v as a JSON response with the given status
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("Error encoding response", "error", err)
	}
}

type uploadURLRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type uploadURLResponse struct {
	SignedURL string `json:"signedUrl"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// handleUploadURL issues a short-lived upload URL
func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, uploadMethods)
	log := logger.FromContext(r.Context())

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{
			Message: "Bad Request",
			Error:   fmt.Errorf("%w: invalid request body: %w", ErrBadRequest, err).Error(),
		})
		return
	}

	url, err := s.issuer.IssueWriteCredential(r.Context(), req.FileName, req.FileType)
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Message: "Bad Request", Error: err.Error()})
			return
		}
		log.Error("Error issuing upload URL", "file_name", req.FileName, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Message: "Internal Server Error", Error: err.Error()})
		return
	}

	log.Info("Issued upload URL", "file_name", req.FileName, "file_type", req.FileType)
	writeJSON(w, r, http.StatusOK, uploadURLResponse{SignedURL: url})
}

// handleListReceipts returns every stored receipt, unsorted
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, readMethods)

	receipts, err := s.records.ScanAll(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Error listing receipts", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, receipts)
}

// handleLatestReceipt returns the most recently processed receipt
func (s *Server) handleLatestReceipt(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, readMethods)

	receipts, err := s.records.ScanAll(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Error listing receipts", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	latest := Latest(receipts)
	if latest == nil {
		http.Error(w, "No receipts found", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, latest)
}

// handleEvents runs the pipeline for each record of an S3 event notification
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var info notification.Info
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&info); err != nil {
		writeJSON(w, r, http.StatusBadRequest, fmt.Sprintf("Error: invalid event: %v", err))
		return
	}

	events, err := EventsFromNotification(info)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(events) == 0 {
		err := fmt.Errorf("%w: event notification has no records", ErrBadRequest)
		log.Warn("Rejected empty event notification")
		writeJSON(w, r, http.StatusBadRequest, fmt.Sprintf("Error: %v", err))
		return
	}

	// Invocations run to completion even if the sender hangs up
	if err := s.pipeline.Dispatch(context.WithoutCancel(r.Context()), events); err != nil {
		log.Error("Error processing receipt", "records", len(events), "error", err)
		writeJSON(w, r, http.StatusInternalServerError, fmt.Sprintf("Error: %v", err))
		return
	}

	writeJSON(w, r, http.StatusOK, "Receipt processed successfully!")
}

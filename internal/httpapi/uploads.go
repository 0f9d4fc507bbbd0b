package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/KhushM7/UncTube/internal/logging"
	"github.com/KhushM7/UncTube/internal/media"
	"github.com/KhushM7/UncTube/internal/memory"
	"github.com/KhushM7/UncTube/internal/objectstore"
)

type uploadInitRequest struct {
	ProfileID string `json:"profile_id"`
	FileName  string `json:"file_name"`
	MIMEType  string `json:"mime_type"`
	Bytes     int64  `json:"bytes"`
}

type uploadInitResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
	ObjectID  string `json:"object_id"`
	ExpiresIn int    `json:"expires_in"`
	MaxBytes  int64  `json:"max_bytes"`
}

type uploadConfirmRequest struct {
	ProfileID string `json:"profile_id"`
	ObjectID  string `json:"object_id"`
	ObjectKey string `json:"object_key"`
	FileName  string `json:"file_name"`
	MIMEType  string `json:"mime_type"`
	Bytes     *int64 `json:"bytes"`
}

type uploadConfirmResponse struct {
	MediaAssetID string `json:"media_asset_id"`
	JobID        string `json:"job_id"`
	Bytes        int64  `json:"bytes"`
}

func newObjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Server) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	var req uploadInitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" || strings.TrimSpace(req.FileName) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "profile_id and file_name are required")
		return
	}
	if req.Bytes < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "bytes must not be negative")
		return
	}
	if !s.validateUpload(w, req.FileName, req.MIMEType, req.Bytes) {
		return
	}

	objectID := s.newID()
	key := media.BuildObjectKey(req.ProfileID, req.FileName, objectID)
	ttl := s.cfg.S3.PresignTTL
	uploadURL, err := s.deps.Objects.PresignPut(r.Context(), key, req.MIMEType, ttl)
	if err != nil {
		logging.FromCtx(r.Context()).Error().Err(err).Str("object_key", key).Msg("presign upload failed")
		respondError(w, http.StatusBadGateway, "presign_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, uploadInitResponse{
		UploadURL: uploadURL,
		ObjectKey: key,
		ObjectID:  objectID,
		ExpiresIn: int(ttl.Seconds()),
		MaxBytes:  media.MaxUploadBytes,
	})
}

// handleUploadConfirm registers an uploaded object and queues its extraction job.
// Confirming the same object twice returns the same asset and job.
func (s *Server) handleUploadConfirm(w http.ResponseWriter, r *http.Request) {
	var req uploadConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" || strings.TrimSpace(req.ObjectKey) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "profile_id and object_key are required")
		return
	}
	if !s.validateUpload(w, req.FileName, req.MIMEType, 0) {
		return
	}
	if req.ObjectID != "" && media.BuildObjectKey(req.ProfileID, req.FileName, req.ObjectID) != req.ObjectKey {
		respondError(w, http.StatusBadRequest, "invalid_object_key", "object_key does not match expected naming scheme")
		return
	}

	ctx := r.Context()
	logger := logging.FromCtx(ctx).With().Str("profile_id", req.ProfileID).Str("object_key", req.ObjectKey).Logger()

	info, err := s.deps.Objects.Head(ctx, req.ObjectKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "object_not_found", fmt.Sprintf("Object not found in storage: %s", req.ObjectKey))
			return
		}
		logger.Error().Err(err).Msg("head object failed")
		respondError(w, http.StatusBadGateway, "storage_failed", err.Error())
		return
	}
	if err := media.ValidateUploadSize(info.Size); err != nil {
		if delErr := s.deps.Objects.Delete(ctx, req.ObjectKey); delErr != nil {
			logger.Warn().Err(delErr).Msg("delete oversized object failed")
		}
		respondError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("File exceeds 100 MB limit (%d bytes)", info.Size))
		return
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = req.ObjectKey
	}
	asset, created, err := s.deps.Store.EnsureMediaAsset(ctx, memory.MediaAsset{
		ID:        req.ObjectID,
		ProfileID: req.ProfileID,
		ObjectKey: req.ObjectKey,
		FileName:  fileName,
		MIMEType:  req.MIMEType,
		Bytes:     info.Size,
	})
	if err != nil {
		respondStoreError(w, r, err, "")
		return
	}
	job, jobCreated, err := s.deps.Store.EnsureJob(ctx, memory.Job{
		ProfileID:    req.ProfileID,
		MediaAssetID: asset.ID,
		JobType:      memory.JobTypeExtract,
	})
	if err != nil {
		respondStoreError(w, r, err, "")
		return
	}
	logger.Info().
		Str("media_asset_id", asset.ID).
		Int64("job_id", job.ID).
		Bool("asset_created", created).
		Bool("job_created", jobCreated).
		Msg("upload confirmed")

	respondJSON(w, http.StatusOK, uploadConfirmResponse{
		MediaAssetID: asset.ID,
		JobID:        fmt.Sprintf("%d", job.ID),
		Bytes:        info.Size,
	})
}

func (s *Server) validateUpload(w http.ResponseWriter, fileName, mimeType string, size int64) bool {
	if err := media.ValidateUploadSize(size); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
		return false
	}
	if err := media.ValidateFileType(fileName, mimeType); err != nil {
		respondError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error())
		return false
	}
	return true
}

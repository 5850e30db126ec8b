package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/serviceerr"
	"github.com/gin-gonic/gin"
)

const opDocumentRoute = "http.documents"

type documentResponsePayload struct {
	Data             documents.Payload `json:"data"`
	CurrentVersion   int64             `json:"currentVersion"`
	VersionCreatedAt *time.Time        `json:"versionCreatedAt"`
}

type saveDocumentRequestPayload struct {
	Data        json.RawMessage `json:"data"`
	ChangeNotes string          `json:"changeNotes"`
}

type versionSummaryPayload struct {
	ID            string    `json:"id"`
	VersionNumber int64     `json:"versionNumber"`
	ChangeNotes   *string   `json:"changeNotes"`
	CreatedBy     *string   `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

type versionDetailPayload struct {
	ID            string          `json:"id"`
	DocumentType  string          `json:"documentType"`
	VersionNumber int64           `json:"versionNumber"`
	Data          json.RawMessage `json:"data"`
	ChangeNotes   *string         `json:"changeNotes"`
	CreatedBy     *string         `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type restoreRequestPayload struct {
	VersionNumber int64 `json:"versionNumber"`
}

func newVersionDetail(version documents.Version) versionDetailPayload {
	return versionDetailPayload{
		ID:            version.ID,
		DocumentType:  version.DocumentType.String(),
		VersionNumber: version.VersionNumber,
		Data:          json.RawMessage(version.Data),
		ChangeNotes:   version.ChangeNotes,
		CreatedBy:     version.CreatedBy,
		CreatedAt:     version.CreatedAt,
	}
}

// documentType parses the :type path segment, writing a 400 when it is not a known document.
func (h *httpHandler) documentType(c *gin.Context) (documents.Type, bool) {
	documentType, err := documents.ParseType(c.Param("type"))
	if err != nil {
		h.respondError(c, serviceerr.New(opDocumentRoute, "unknown_document_type", serviceerr.KindValidation, err))
		return "", false
	}
	return documentType, true
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	snapshot, err := h.documents.GetCurrent(c.Request.Context(), documentType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponsePayload{
		Data:             snapshot.Payload,
		CurrentVersion:   snapshot.VersionNumber,
		VersionCreatedAt: snapshot.CreatedAt,
	})
}

func (h *httpHandler) handleSaveDocument(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	var request saveDocumentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	version, err := h.documents.SaveRaw(c.Request.Context(), documentType, request.Data, request.ChangeNotes, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":   version.VersionNumber,
		"versionId": version.ID,
	})
}

func (h *httpHandler) handleDocumentVersions(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}

	if rawNumber, requested := c.GetQuery("version"); requested {
		versionNumber, err := strconv.ParseInt(strings.TrimSpace(rawNumber), 10, 64)
		if err != nil {
			h.respondError(c, serviceerr.New(opDocumentRoute, "invalid_version_number", serviceerr.KindValidation, fmt.Errorf("%w: %q", documents.ErrInvalidVersionNumber, rawNumber)))
			return
		}
		version, err := h.documents.GetVersion(c.Request.Context(), documentType, versionNumber)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": newVersionDetail(version)})
		return
	}

	summaries, err := h.documents.ListVersions(c.Request.Context(), documentType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	versions := make([]versionSummaryPayload, 0, len(summaries))
	for _, summary := range summaries {
		versions = append(versions, versionSummaryPayload{
			ID:            summary.ID,
			VersionNumber: summary.VersionNumber,
			ChangeNotes:   summary.ChangeNotes,
			CreatedBy:     summary.CreatedBy,
			CreatedAt:     summary.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

func (h *httpHandler) handleRestoreVersion(c *gin.Context) {
	documentType, ok := h.documentType(c)
	if !ok {
		return
	}
	var request restoreRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	restored, err := h.documents.RestoreVersion(c.Request.Context(), documentType, request.VersionNumber, c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"newVersion": restored.VersionNumber,
		"versionId":  restored.ID,
		"message":    fmt.Sprintf("Restored version %d as version %d", request.VersionNumber, restored.VersionNumber),
	})
}

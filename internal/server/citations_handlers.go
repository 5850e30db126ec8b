package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/gin-gonic/gin"
)

type citationPayload struct {
	ID             string    `json:"id"`
	ContributionID *string   `json:"contributionId"`
	ClusterID      *string   `json:"clusterId"`
	VersionType    string    `json:"versionType"`
	VersionID      string    `json:"versionId"`
	SectionID      *string   `json:"sectionId"`
	CreatedAt      time.Time `json:"createdAt"`
}

type citationViewPayload struct {
	citationPayload
	ContributionContent *string `json:"contributionContent"`
	ContributionType    *string `json:"contributionType"`
	ContributorName     *string `json:"contributorName"`
	IsAnonymous         bool    `json:"isAnonymous"`
	ClusterName         *string `json:"clusterName"`
	ClusterSummary      *string `json:"clusterSummary"`
}

type createCitationRequestPayload struct {
	ContributionID string `json:"contributionId"`
	ClusterID      string `json:"clusterId"`
	VersionType    string `json:"versionType"`
	VersionID      string `json:"versionId"`
	SectionID      string `json:"sectionId"`
}

func newCitationPayload(citation citations.Citation) citationPayload {
	return citationPayload{
		ID:             citation.ID,
		ContributionID: citation.ContributionID,
		ClusterID:      citation.ClusterID,
		VersionType:    citation.VersionType.String(),
		VersionID:      citation.VersionID,
		SectionID:      citation.SectionID,
		CreatedAt:      citation.CreatedAt,
	}
}

func (h *httpHandler) handleListCitations(c *gin.Context) {
	var (
		views []citations.View
		err   error
	)
	versionType, versionID := c.Query("versionType"), c.Query("versionId")
	if sectionID := strings.TrimSpace(c.Query("sectionId")); sectionID != "" {
		views, err = h.citations.ForSection(c.Request.Context(), versionType, versionID, sectionID)
	} else {
		views, err = h.citations.ForVersion(c.Request.Context(), versionType, versionID)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	payloads := make([]citationViewPayload, 0, len(views))
	for _, view := range views {
		payloads = append(payloads, citationViewPayload{
			citationPayload:     newCitationPayload(view.Citation),
			ContributionContent: view.ContributionContent,
			ContributionType:    view.ContributionType,
			ContributorName:     view.ContributorName,
			IsAnonymous:         view.IsAnonymous,
			ClusterName:         view.ClusterName,
			ClusterSummary:      view.ClusterSummary,
		})
	}
	c.JSON(http.StatusOK, gin.H{"citations": payloads})
}

func (h *httpHandler) handleCreateCitation(c *gin.Context) {
	var request createCitationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	citation, err := h.citations.Create(c.Request.Context(), citations.CreateRequest{
		ContributionID: request.ContributionID,
		ClusterID:      request.ClusterID,
		VersionType:    request.VersionType,
		VersionID:      request.VersionID,
		SectionID:      request.SectionID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"citation": newCitationPayload(citation),
		"message":  "Citation created",
	})
}

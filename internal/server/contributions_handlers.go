package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/contributions"
	"github.com/gin-gonic/gin"
)

type contributionPayload struct {
	ID               string     `json:"id"`
	UserID           *string    `json:"userId,omitempty"`
	TargetType       string     `json:"targetType"`
	TargetSection    *string    `json:"targetSection"`
	ContributionType string     `json:"contributionType"`
	Content          string     `json:"content"`
	IsAnonymous      bool       `json:"isAnonymous"`
	Status           string     `json:"status"`
	ContributorName  *string    `json:"contributorName"`
	ReviewerID       *string    `json:"reviewerId"`
	ReviewNotes      *string    `json:"reviewNotes"`
	ClusterID        *string    `json:"clusterId"`
	CreatedAt        time.Time  `json:"createdAt"`
	ReviewedAt       *time.Time `json:"reviewedAt"`
}

type clusterPayload struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	Summary   string    `json:"summary"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type createContributionRequestPayload struct {
	TargetType       string `json:"targetType"`
	TargetSection    string `json:"targetSection"`
	ContributionType string `json:"contributionType"`
	Content          string `json:"content"`
	IsAnonymous      bool   `json:"isAnonymous"`
}

type reviewRequestPayload struct {
	Status      string `json:"status"`
	ReviewNotes string `json:"reviewNotes"`
}

type createClusterRequestPayload struct {
	Name            string   `json:"name"`
	Summary         string   `json:"summary"`
	ContributionIDs []string `json:"contributionIds"`
}

// newContributionPayload hides the author id of anonymous contributions from everyone but the
// author and admins.
func newContributionPayload(view contributions.View, actor contributions.Actor) contributionPayload {
	payload := contributionPayload{
		ID:               view.ID,
		TargetType:       string(view.TargetType),
		TargetSection:    view.TargetSection,
		ContributionType: string(view.ContributionType),
		Content:          view.Content,
		IsAnonymous:      view.IsAnonymous,
		Status:           string(view.Status),
		ContributorName:  view.ContributorName,
		ReviewerID:       view.ReviewerID,
		ReviewNotes:      view.ReviewNotes,
		ClusterID:        view.ClusterID,
		CreatedAt:        view.CreatedAt,
		ReviewedAt:       view.ReviewedAt,
	}
	if !view.IsAnonymous || actor.IsAdmin || actor.UserID == view.UserID {
		userID := view.UserID
		payload.UserID = &userID
	}
	return payload
}

func newContributionPayloads(views []contributions.View, actor contributions.Actor) []contributionPayload {
	payloads := make([]contributionPayload, 0, len(views))
	for _, view := range views {
		payloads = append(payloads, newContributionPayload(view, actor))
	}
	return payloads
}

func newClusterPayload(cluster contributions.Cluster) clusterPayload {
	return clusterPayload{
		ID:        cluster.ID,
		Name:      cluster.Name,
		Summary:   cluster.Summary,
		CreatedBy: cluster.CreatedBy,
		CreatedAt: cluster.CreatedAt,
	}
}

func (h *httpHandler) handleListContributions(c *gin.Context) {
	actor := currentActor(c)
	views, err := h.contributions.List(c.Request.Context(), contributions.ListQuery{
		View:       contributions.ListView(c.Query("view")),
		UserID:     actor.UserID,
		IsAdmin:    actor.IsAdmin,
		TargetType: c.Query("targetType"),
		Status:     c.Query("status"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": newContributionPayloads(views, actor)})
}

func (h *httpHandler) handleCreateContribution(c *gin.Context) {
	var request createContributionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	actor := currentActor(c)
	view, err := h.contributions.Create(c.Request.Context(), contributions.CreateRequest{
		UserID:           actor.UserID,
		TargetType:       request.TargetType,
		TargetSection:    request.TargetSection,
		ContributionType: request.ContributionType,
		Content:          request.Content,
		IsAnonymous:      request.IsAnonymous,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	message := "Contribution submitted for review"
	if view.Status == contributions.StatusAutoPublished {
		message = "Contribution published"
	}
	c.JSON(http.StatusCreated, gin.H{
		"contribution": newContributionPayload(view, actor),
		"message":      message,
	})
}

func (h *httpHandler) handleReviewContribution(c *gin.Context) {
	var request reviewRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	actor := currentActor(c)
	result, err := h.contributions.Review(c.Request.Context(), contributions.ReviewRequest{
		ContributionID: c.Param("id"),
		ReviewerID:     actor.UserID,
		Status:         request.Status,
		ReviewNotes:    request.ReviewNotes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := gin.H{
		"contribution": newContributionPayload(result.Contribution, actor),
		"message":      fmt.Sprintf("Contribution %s", result.Contribution.Status),
	}
	if result.Version != nil {
		response["newVersion"] = result.Version.VersionNumber
	}
	if result.Citation != nil {
		response["citation"] = newCitationPayload(*result.Citation)
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleDeleteContribution(c *gin.Context) {
	if err := h.contributions.Delete(c.Request.Context(), c.Param("id"), currentActor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contribution deleted"})
}

func (h *httpHandler) handleCreateCluster(c *gin.Context) {
	var request createClusterRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	cluster, err := h.contributions.CreateCluster(c.Request.Context(), contributions.ClusterRequest{
		Name:            request.Name,
		Summary:         request.Summary,
		ContributionIDs: request.ContributionIDs,
		CreatedBy:       c.GetString(userIDContextKey),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"cluster": newClusterPayload(cluster),
		"message": "Cluster created",
	})
}

func (h *httpHandler) handleGetCluster(c *gin.Context) {
	detail, err := h.contributions.GetClusterWithContributions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cluster":       newClusterPayload(detail.Cluster),
		"contributions": newContributionPayloads(detail.Contributions, currentActor(c)),
	})
}

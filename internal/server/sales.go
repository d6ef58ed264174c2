package server

import (
	"net/http"
	"strings"

	platformsyncdomain "github.com/authorstack/authorstack/internal/platformsync/domain"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/gin-gonic/gin"
)

type salesResponse struct {
	Range      string                       `json:"range,omitempty"`
	From       string                       `json:"from"`
	To         string                       `json:"to"`
	Sales      []salesdomain.SaleRecord     `json:"sales"`
	Aggregates []salesdomain.DailyAggregate `json:"aggregates"`
}

func (s *Server) ListSales(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		Range    string `form:"range"`
		Start    string `form:"start"`
		End      string `form:"end"`
		Platform string `form:"platform"`
		BookID   string `form:"book_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rng, err := parseDateRange(query.Range, query.Start, query.End, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	platform, err := parseOptionalPlatform(query.Platform)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	sales, err := s.salesSvc.GetSales(ctx, salesdomain.SalesFilter{
		UserID:   userID,
		Range:    rng,
		Platform: platform,
		BookID:   strings.TrimSpace(query.BookID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	aggregates, err := s.salesSvc.GetDailyAggregates(ctx, userID, rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := salesResponse{
		From:       rng.StartKey(),
		To:         rng.EndKey(),
		Sales:      sales,
		Aggregates: aggregates,
	}
	if query.Start == "" && query.End == "" {
		resp.Range = strings.ToLower(strings.TrimSpace(query.Range))
		if resp.Range == "" {
			resp.Range = defaultSalesRange
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// TriggerSync queues platform syncs and answers before they run.
func (s *Server) TriggerSync(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req platformsyncdomain.TriggerRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	req.UserID = userID

	resp, err := s.syncSvc.Trigger(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

type importSalesRequest struct {
	Platform string                  `json:"platform"`
	Records  []salesdomain.SaleInput `json:"records"`
}

func (s *Server) ImportSales(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req importSalesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	platform, err := salesdomain.ParsePlatform(req.Platform)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("platform", string(platform))

	resp, err := s.syncSvc.Import(c.Request.Context(), salesdomain.IngestRequest{
		UserID:   userID,
		Platform: platform,
		Records:  req.Records,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSyncLogs(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	limit, err := parseOptionalInt("limit", c.Query("limit"), 0)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.syncLogSvc.List(c.Request.Context(), userID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

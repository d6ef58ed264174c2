package server

import (
	"net/http"

	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	"github.com/authorstack/authorstack/internal/observability/logger"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	synclogdomain "github.com/authorstack/authorstack/internal/synclog/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dashboardRecentLogs = 5

type dashboardBook struct {
	salesdomain.BookTotal
	Title string `json:"title,omitempty"`
}

type dashboardResponse struct {
	Overview   *salesdomain.Overview   `json:"overview"`
	TopBooks   []dashboardBook         `json:"top_books"`
	RecentSync []synclogdomain.SyncLog `json:"recent_syncs"`
}

// GetDashboard combines the cached overview with book titles and the latest
// sync outcomes. Title lookup failures leave titles empty.
func (s *Server) GetDashboard(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	days, err := parseOptionalInt("days", c.Query("days"), 0)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	overview, err := s.salesSvc.Overview(ctx, userID, days)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	titles := map[string]string{}
	if len(overview.TopBooks) > 0 {
		books, err := s.bookSvc.List(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("dashboard book titles unavailable", zap.Error(err))
		}
		titles = bookTitles(books)
	}

	top := make([]dashboardBook, 0, len(overview.TopBooks))
	for _, total := range overview.TopBooks {
		top = append(top, dashboardBook{BookTotal: total, Title: titles[total.BookID]})
	}

	logs, err := s.syncLogSvc.List(ctx, userID, dashboardRecentLogs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dashboardResponse{
		Overview:   overview,
		TopBooks:   top,
		RecentSync: logs,
	}})
}

func bookTitles(books []bookdomain.Book) map[string]string {
	titles := make(map[string]string, len(books))
	for _, b := range books {
		titles[b.ID] = b.Title
	}
	return titles
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sellerdesk/seller-backoffice/internal/migrate"
	"github.com/sellerdesk/seller-backoffice/internal/utils"
)

// MigrationListResponse is the body of GET /migrations
type MigrationListResponse struct {
	Status  *migrate.Status   `json:"status"`
	LastRun migrate.RunStatus `json:"last_run"`
}

// listMigrationsHandler godoc
// @Summary List migrations
// @Description Classify every migration file as applied, pending or invalid and report orphaned tracking rows
// @Tags migrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MigrationListResponse
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /migrations [get]
func (s *Server) listMigrationsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	logger := utils.FromContext(ctx)

	status, err := s.migrations.Status(ctx)
	if err != nil {
		if migrate.IsDirectoryNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		subject, _ := getSubjectFromContext(c)
		logger.Error().Err(err).Str("subject", subject).Msg("Failed to read migration status")

		err = utils.WrapDatabaseError("list migrations", err)
		c.JSON(utils.HTTPStatus(err), gin.H{"error": utils.PublicMessage(err)})
		return
	}

	c.JSON(http.StatusOK, MigrationListResponse{
		Status:  status,
		LastRun: s.migrations.LastRun(),
	})
}

// getMigrationHandler godoc
// @Summary Get an applied migration
// @Description Return the tracking row for one migration version
// @Tags migrations
// @Produce json
// @Security BearerAuth
// @Param version path int true "Migration version"
// @Success 200 {object} models.AppliedRecord
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /migrations/{version} [get]
func (s *Server) getMigrationHandler(c *gin.Context) {
	ctx := c.Request.Context()

	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		err = utils.InvalidFieldError("version", "must be a positive integer")
		c.JSON(utils.HTTPStatus(err), gin.H{"error": utils.PublicMessage(err)})
		return
	}

	record, err := s.migrations.Record(ctx, version)
	if err != nil {
		if !utils.IsValidationError(err) && !utils.IsNotFoundError(err) {
			utils.FromContext(ctx).Error().Err(err).Int64("version", version).Msg("Failed to look up migration")
			err = utils.WrapDatabaseError("get migration", err)
		}
		c.JSON(utils.HTTPStatus(err), gin.H{"error": utils.PublicMessage(err)})
		return
	}

	c.JSON(http.StatusOK, record)
}

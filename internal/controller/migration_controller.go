package controller

import (
	"errors"
	"net/http"

	"github.com/armchr/junitmig/internal/catalog"
	"github.com/armchr/junitmig/internal/engine"
	"github.com/armchr/junitmig/internal/model"
	"github.com/armchr/junitmig/internal/query"
	"github.com/armchr/junitmig/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MigrationController struct {
	migrationService *service.MigrationService
	logger           *zap.Logger
}

func NewMigrationController(migrationService *service.MigrationService, logger *zap.Logger) *MigrationController {
	return &MigrationController{
		migrationService: migrationService,
		logger:           logger,
	}
}

// Migrate runs the engine over the files of the request body. Nothing is written.
func (mc *MigrationController) Migrate(c *gin.Context) {
	var request model.MigrateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	resp, err := mc.migrationService.Migrate(c.Request.Context(), "", request.Files, request.Cleanups, engine.OutputMode(request.Output))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MigrateRepository migrates a repository from the configuration.
func (mc *MigrationController) MigrateRepository(c *gin.Context) {
	var request model.MigrateRepositoryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		mc.logger.Error("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	mc.logger.Info("Migrating repository",
		zap.String("repo_name", request.RepoName),
		zap.Bool("write", request.Write))

	if _, err := mc.migrationService.GetConfig().GetRepository(request.RepoName); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Repository not found",
			"details": err.Error(),
		})
		return
	}

	resp, err := mc.migrationService.MigrateRepository(c.Request.Context(), request)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListCleanups describes the catalog; ?patterns=true adds the entries of every cleanup.
func (mc *MigrationController) ListCleanups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cleanups": mc.migrationService.Cleanups(c.Query("patterns") == "true"),
		"defaults": catalog.Default(),
	})
}

func (mc *MigrationController) fail(c *gin.Context, err error) {
	var unknown *catalog.UnknownCleanupError
	var modified *service.ModifiedFilesError
	var conflict *query.ConflictingMatchError
	status := http.StatusInternalServerError
	message := "Migration failed"
	switch {
	case errors.As(err, &unknown):
		status, message = http.StatusBadRequest, "Unknown cleanup"
	case errors.As(err, &modified):
		status, message = http.StatusConflict, "Files have uncommitted changes"
	case errors.As(err, &conflict):
		message = "Rule catalog conflict"
	}
	mc.logger.Error(message, zap.Error(err))
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"seedbox/internal/domain"
	"seedbox/internal/progress"
	"seedbox/internal/service"
	"seedbox/internal/transcode"
)

// Only these formats are eligible for MP4 conversion.
var videoExtensions = map[string]struct{}{
	"mkv": {},
	"avi": {},
}

// Handler wires HTTP routes to domain services. It is a thin dispatch
// surface: torrent creation hands off to the reconciler, the convert route
// hands off to the transcode worker, and reads merge durable records with
// live values from the progress store.
type Handler struct {
	torrents service.TorrentService
	files    service.FileService
	users    service.UserService
	store    *progress.Store
	worker   *transcode.Worker
	logger   *logrus.Logger
}

func NewHandler(
	torrents service.TorrentService,
	files service.FileService,
	users service.UserService,
	store *progress.Store,
	worker *transcode.Worker,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		torrents: torrents,
		files:    files,
		users:    users,
		store:    store,
		worker:   worker,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/users", h.registerUser)
		api.POST("/torrents", h.createTorrent)
		api.GET("/torrents", h.listTorrents)
		api.GET("/torrents/:id", h.getTorrent)
		api.DELETE("/torrents/:id", h.deleteTorrent)
		api.GET("/files/:id", h.getFile)
		api.POST("/files/:id/convert", h.convertFile)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusAccepted, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerUserRequest struct {
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
	RegisterPassword string `json:"register_password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRegistrationPassword):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type createTorrentRequest struct {
	Link    string `json:"link" binding:"required"`
	OwnerID int64  `json:"owner_id"`
}

func (h *Handler) createTorrent(c *gin.Context) {
	var req createTorrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	torrent, created, err := h.torrents.Add(c.Request.Context(), req.Link, req.OwnerID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLink) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, h.torrentToResponse(*torrent))
}

func (h *Handler) listTorrents(c *gin.Context) {
	torrents, err := h.torrents.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]TorrentResponse, len(torrents))
	for i := range torrents {
		resp[i] = h.torrentToResponse(torrents[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTorrent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	torrent, err := h.torrents.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.torrentToResponse(*torrent))
}

func (h *Handler) deleteTorrent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.torrents.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func (h *Handler) getFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	file, err := h.files.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.fileToResponse(*file))
}

// convertFile decides whether a conversion may start. The worker itself does
// not guard, so every rejection rule lives here; the states it inspects are
// maintained by the worker and the progress store.
func (h *Handler) convertFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	file, err := h.files.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, ok := videoExtensions[file.Ext]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Conversion not available for this file."})
		return
	}

	started, err := h.store.ConversionStarted(file.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if started {
		c.JSON(http.StatusOK, gin.H{"detail": "Conversion already started."})
		return
	}

	counterpart, err := h.files.FindConversionCounterpart(c.Request.Context(), file)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if counterpart != nil {
		status, reported, err := h.store.GetConversionStatus(counterpart.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		switch {
		case reported && status.Progress != "100.00":
			c.JSON(http.StatusBadRequest, gin.H{
				"detail":   "Conversion in progress.",
				"progress": status.Progress,
			})
		case reported:
			c.JSON(http.StatusBadRequest, gin.H{
				"detail":   "Conversion was completed.",
				"progress": "100.00",
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"detail": "There is already a MP4 version of this file."})
		}
		return
	}

	var torrentIDs []int64
	if file.StorageArea == domain.AreaTorrentComplete {
		torrentIDs, err = h.torrents.TorrentIDsByFile(c.Request.Context(), file.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.store.MarkConversionStarted(file.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.worker.Enqueue(file.ID, torrentIDs)

	c.JSON(http.StatusOK, gin.H{"detail": "Conversion has started."})
}

type TorrentResponse struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	InfoHash     string         `json:"info_hash"`
	Status       domain.Status  `json:"status"`
	Progress     float64        `json:"progress"`
	Ratio        float64        `json:"ratio"`
	Size         int64          `json:"size"`
	Finished     bool           `json:"finished"`
	Private      bool           `json:"private"`
	RateUpload   int64          `json:"rate_upload"`
	RateDownload int64          `json:"rate_download"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	Files        []FileResponse `json:"files"`
}

type FileResponse struct {
	ID           int64              `json:"id"`
	StorageArea  domain.StorageArea `json:"storage_area"`
	RelativePath string             `json:"relative_path"`
	Name         string             `json:"name"`
	Ext          string             `json:"ext"`
	ContentType  string             `json:"content_type"`
	Size         int64              `json:"size"`
	MP4Status    *MP4StatusResponse `json:"mp4_status,omitempty"`
}

type MP4StatusResponse struct {
	Duration int64  `json:"duration"`
	Progress string `json:"progress"`
}

func (h *Handler) torrentToResponse(torrent domain.Torrent) TorrentResponse {
	resp := TorrentResponse{
		ID:        torrent.ID,
		Name:      torrent.Name,
		InfoHash:  torrent.InfoHash,
		Status:    torrent.Status,
		Progress:  torrent.Progress,
		Ratio:     torrent.Ratio,
		Size:      torrent.Size,
		Finished:  torrent.Finished,
		Private:   torrent.Private,
		CreatedAt: torrent.CreatedAt.Format(time.RFC3339),
		UpdatedAt: torrent.UpdatedAt.Format(time.RFC3339),
		Files:     make([]FileResponse, len(torrent.Files)),
	}

	rates, err := h.store.GetTorrentRates(torrent.ID)
	if err != nil {
		h.logger.Warnf("read rates for torrent %d: %v", torrent.ID, err)
	} else {
		resp.RateUpload = rates.RateUpload
		resp.RateDownload = rates.RateDownload
	}

	for i := range torrent.Files {
		resp.Files[i] = h.fileToResponse(torrent.Files[i])
	}
	return resp
}

func (h *Handler) fileToResponse(file domain.File) FileResponse {
	resp := FileResponse{
		ID:           file.ID,
		StorageArea:  file.StorageArea,
		RelativePath: file.RelativePath,
		Name:         file.Name,
		Ext:          file.Ext,
		ContentType:  file.ContentType,
		Size:         file.Size,
	}

	if file.Ext == "mp4" {
		status, reported, err := h.store.GetConversionStatus(file.ID)
		if err != nil {
			h.logger.Warnf("read conversion status for file %d: %v", file.ID, err)
		} else if reported {
			resp.MP4Status = &MP4StatusResponse{
				Duration: status.Duration,
				Progress: status.Progress,
			}
		}
	}
	return resp
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

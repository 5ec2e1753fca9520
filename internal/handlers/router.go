package handlers

import (
	"github.com/gin-gonic/gin"
)

// Router holds every handler mounted by the API server
type Router struct {
	Scans       *ScanHandler
	Admin       *AdminHandler
	Authors     *AuthorHandler
	News        *NewsHandler
	Music       *MusicHandler
	Docs        *DocsHandler
	Health      *HealthHandler
	CORSOrigins []string
	SongsDir    string
}

// Engine builds the gin engine with all routes registered.
func (rt *Router) Engine() *gin.Engine {
	r := gin.Default()
	r.Use(CORS(rt.CORSOrigins))

	r.GET("/health", rt.Health.HealthCheck)
	r.GET("/doc/:doc", rt.Docs.ServeMarkdownAsHTML)

	// Scans
	r.POST("/analyze-post", rt.Scans.AnalyzePost)
	r.GET("/scan-results/:scan_id", rt.Scans.ScanResults)
	r.GET("/post-scans", rt.Scans.PostScans)
	r.POST("/analyze-text", rt.Scans.AnalyzeText)
	r.GET("/text-scan-results/:scan_id", rt.Scans.TextScanResults)
	r.GET("/text-scans", rt.Scans.TextScans)
	r.GET("/ws/scans/:scan_id", rt.Scans.ScanSocket)

	// Author attribution
	r.POST("/match-author", rt.Authors.MatchAuthor)
	r.POST("/upload-audio", rt.Authors.UploadAudio)
	r.POST("/generate_transcription/stream", rt.Authors.StreamTranscription)

	// News
	r.GET("/news", rt.News.ListNews)
	r.GET("/news/:id/claims", rt.News.NewsClaims)

	// Music
	r.POST("/news-to-song", rt.Music.NewsToSong)
	r.POST("/news-to-lyrics", rt.Music.NewsToLyrics)
	r.GET("/songs-history", rt.Music.Songs)
	if rt.SongsDir != "" {
		r.Static("/songs", rt.SongsDir)
	}

	api := r.Group("/api")
	{
		api.POST("/split-stems", rt.Music.SplitStems)
		api.GET("/worker/status", rt.Health.WorkerStatus)
	}

	// Admin routes (password protected)
	admin := r.Group("/admin", rt.Admin.AdminAuth())
	{
		admin.DELETE("/scans/:scan_id", rt.Admin.DeleteScan)
		admin.POST("/scans/:scan_id/rescan", rt.Admin.RescanScan)
		admin.POST("/news/collect", rt.Admin.CollectNews)
	}

	return r
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"campusrag/internal/app"
	"campusrag/internal/model"
	"campusrag/internal/transport/http/response"
)

type DocumentService interface {
	Upload(ctx context.Context, in app.UploadInput) (*model.Document, error)
	List(ctx context.Context) ([]app.DocumentView, error)
	Chunks(ctx context.Context, id uint) ([]model.Chunk, error)
	Download(ctx context.Context, id uint) (*model.Document, []byte, error)
	Delete(ctx context.Context, id uint) error
	Reprocess(ctx context.Context, id uint) error
}

type DocumentHandler struct {
	documentService DocumentService
	maxBytes        int64
}

func NewDocumentHandler(documentService DocumentService, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = app.DefaultMaxUploadBytes
	}
	return &DocumentHandler{documentService: documentService, maxBytes: maxBytes}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documentService.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "Erreur lors de la récupération des documents")
		return
	}
	response.OK(c, docs)
}

// Upload takes a multipart form with "file", "title" and an optional "category".
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	title := c.PostForm("title")
	fileHeader, err := c.FormFile("file")
	if err != nil || title == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Fichier et titre requis")
		return
	}
	if fileHeader.Size > h.maxBytes {
		response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, tooLargeMessage(h.maxBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Fichier et titre requis")
		return
	}
	defer file.Close()

	// one byte past the limit is enough to detect an oversized body
	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Fichier et titre requis")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		Title:       title,
		Category:    c.PostForm("category"),
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
		UploadedBy:  userID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "Fichier et titre requis")
		case errors.Is(err, app.ErrUnsupportedFile):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, "Seuls les fichiers PDF sont acceptés")
		case errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, tooLargeMessage(h.maxBytes))
		case errors.Is(err, app.ErrIngestEnqueue):
			response.Error(c, http.StatusServiceUnavailable, response.CodeIngestionNotStarted, "Document enregistré mais le traitement n'a pas pu démarrer")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "Erreur lors de l'upload du document")
		}
		return
	}

	response.Accepted(c, "Document uploadé avec succès. Traitement en cours...", doc)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	chunks, err := h.documentService.Chunks(c.Request.Context(), id)
	if err != nil {
		writeDocumentError(c, err, "Erreur lors de la récupération des documents")
		return
	}
	response.OK(c, chunks)
}

func (h *DocumentHandler) Download(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, data, err := h.documentService.Download(c.Request.Context(), id)
	if err != nil {
		writeDocumentError(c, err, "Erreur lors du téléchargement du document")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", doc.Filename, url.PathEscape(doc.Filename)))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), id); err != nil {
		writeDocumentError(c, err, "Erreur lors de la suppression du document")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func (h *DocumentHandler) Reprocess(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	if err := h.documentService.Reprocess(c.Request.Context(), id); err != nil {
		if errors.Is(err, app.ErrIngestEnqueue) {
			response.Error(c, http.StatusServiceUnavailable, response.CodeIngestionNotStarted, "Le retraitement n'a pas pu démarrer")
			return
		}
		writeDocumentError(c, err, "Erreur lors de l'exécution de l'action")
		return
	}
	response.Accepted(c, "Document en cours de retraitement...", gin.H{"document_id": id})
}

func documentID(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return 0, false
	}
	return uint(id64), true
}

func writeDocumentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "Document non trouvé")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func tooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("Le fichier ne peut pas dépasser %dMB", maxBytes>>20)
}

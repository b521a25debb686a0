package adminapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"go.uber.org/zap"
)

const maxDocumentSize = 20 << 20

func registerDocumentRoutes() {
	webserver.ApiGET("/documents", ListDocuments)
	webserver.ApiGET("/documents/:id", GetDocument)
	webserver.ApiGET("/documents/:id/download", DownloadDocument)
	webserver.ApiPOST("/documents", UploadDocument)
	webserver.ApiDELETE("/documents/:id", DeleteDocument)
}

func ListDocuments(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Document{})
	if id := queryID(c, "patient_id"); id > 0 {
		query = query.Where("patient_id = ?", id)
	}
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		query = query.Where("category = ?", strings.ToUpper(category))
	}
	query = searchScope(query, c.QueryParam("q"), "title", "file_name")
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query documents", err.Error())
	}
	var rows []domain.Document
	if err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query documents", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func GetDocument(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID", nil)
	}
	var doc domain.Document
	if err := GetDB(c).First(&doc, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found", nil)
	}
	return ok(c, doc)
}

// UploadDocument stores a multipart file and its metadata
// @Summary upload document
// @Tags Documents
// @Accept multipart/form-data
// @Param file formData file true "Document file"
// @Param title formData string false "Title"
// @Param category formData string false "Category"
// @Param patient_id formData string false "Patient ID"
// @Success 201 {object} domain.Document
// @Router /api/v1/documents [post]
func UploadDocument(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "FILE_REQUIRED", "A file field is required", err.Error())
	}
	if fh.Size > maxDocumentSize {
		return fail(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Document exceeds 20 MB", fh.Size)
	}
	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to read upload", err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxDocumentSize+1))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to read upload", err.Error())
	}
	if len(data) == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Empty file", nil)
	}

	var patientId int64
	if v := strings.TrimSpace(c.FormValue("patient_id")); v != "" {
		var patient domain.Patient
		if err := GetDB(c).Where("id = ?", v).First(&patient).Error; err != nil {
			return fail(c, http.StatusUnprocessableEntity, "PATIENT_UNAVAILABLE", "Patient not found", nil)
		}
		patientId = patient.ID
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		title = fh.Filename
	}
	doc := domain.Document{
		ID:         common.UUIDint64(),
		PatientId:  patientId,
		Title:      title,
		Category:   strings.ToUpper(common.If(c.FormValue("category") == "", "GENERAL", c.FormValue("category")).(string)),
		FileName:   fh.Filename,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		BlobKey:    common.UUID(),
		UploadedBy: webserver.GetOperatorName(c),
	}

	store := GetAppContext(c).DocStore()
	if err := store.Put(doc.BlobKey, data); err != nil {
		return fail(c, http.StatusInternalServerError, "STORE_FAILED", "Failed to store document", err.Error())
	}
	if err := GetDB(c).Create(&doc).Error; err != nil {
		_ = store.Delete(doc.BlobKey)
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to save document", err.Error())
	}
	publishAudit(c, "create", "document", doc.ID, map[string]string{"file": doc.FileName})
	return created(c, doc)
}

func DownloadDocument(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID", nil)
	}
	var doc domain.Document
	if err := GetDB(c).First(&doc, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found", nil)
	}
	data, err := GetAppContext(c).DocStore().Get(doc.BlobKey)
	if err != nil {
		zap.L().Error("document blob missing", zap.Int64("document_id", doc.ID), zap.Error(err))
		return fail(c, http.StatusNotFound, "CONTENT_NOT_FOUND", "Document content not found", nil)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+strings.ReplaceAll(doc.FileName, `"`, "")+`"`)
	return c.Blob(http.StatusOK, doc.MimeType, data)
}

func DeleteDocument(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid document ID", nil)
	}
	var doc domain.Document
	if err := GetDB(c).First(&doc, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "Document not found", nil)
	}
	if err := GetDB(c).Delete(&doc).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete document", err.Error())
	}
	if err := GetAppContext(c).DocStore().Delete(doc.BlobKey); err != nil {
		zap.L().Warn("document blob delete failed", zap.String("key", doc.BlobKey), zap.Error(err))
	}
	publishAudit(c, "delete", "document", id, map[string]string{"file": doc.FileName})
	return c.NoContent(http.StatusNoContent)
}

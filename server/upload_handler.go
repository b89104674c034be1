package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"beatmarket/core/apperr"
	"beatmarket/core/resource"
	"beatmarket/core/upload"
	"beatmarket/logger"

	"github.com/gorilla/mux"
)

// formFile opens the named part of a parsed multipart form. It returns a nil
// file when the part is absent.
func formFile(r *http.Request, field string) (*upload.File, func(), error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, func() {}, nil
	}
	fh := r.MultipartForm.File[field][0]
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, apperr.Validation("Invalid %s upload", field)
	}
	return fileFromHeader(fh, f), func() { f.Close() }, nil
}

func fileFromHeader(fh *multipart.FileHeader, body io.Reader) *upload.File {
	return &upload.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        body,
	}
}

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return bodyError(err)
	}
	return nil
}

// single handles the upload-image and upload-audio routes.
func (h *APIHandler) single(w http.ResponseWriter, r *http.Request, op, field, urlKey, message string, policy upload.Policy) {
	if err := parseMultipart(r); err != nil {
		writeError(w, op, err)
		return
	}
	file, closeFile, err := formFile(r, field)
	if err != nil {
		writeError(w, op, err)
		return
	}
	defer closeFile()

	stored, err := h.files.Store(r.Context(), policy, file)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     message,
		"fileId":      stored.ID,
		urlKey:        stored.PublicURL,
		"filePath":    stored.Path,
		"filename":    stored.OriginalName,
		"contentType": stored.ContentType,
	})
}

func (h *APIHandler) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, "[UploadImage]", "image", "imageUrl", "Image uploaded successfully", h.files.Images)
}

func (h *APIHandler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, "[UploadAudio]", "audio", "audioUrl", "Audio uploaded successfully", h.files.Audio)
}

// attachment is one optional file of an upload-then-create request.
type attachment struct {
	part   string // multipart field name
	field  string // record field receiving the public URL
	urlKey string // response key
	policy upload.Policy
}

// createWithFiles validates every attached file, stores them, then creates
// the record. When the create fails the stored files are removed; a failed
// removal leaves an orphan that is logged with its path.
func (h *APIHandler) createWithFiles(w http.ResponseWriter, r *http.Request, op string, e *resource.Engine, attachments []attachment) {
	res := e.Resource()
	if err := parseMultipart(r); err != nil {
		writeError(w, op, err)
		return
	}
	payload := formPayload(r.MultipartForm.Value)

	files := make([]*upload.File, len(attachments))
	for i, a := range attachments {
		f, closeFile, err := formFile(r, a.part)
		if err != nil {
			writeError(w, op, err)
			return
		}
		defer closeFile()
		if f != nil {
			if err := h.files.Check(a.policy, f); err != nil {
				writeError(w, op, err)
				return
			}
		}
		files[i] = f
	}

	resp := map[string]interface{}{"success": true}
	var stored []string
	for i, a := range attachments {
		if files[i] == nil {
			continue
		}
		sf, err := h.files.Store(r.Context(), a.policy, files[i])
		if err != nil {
			h.discard(op, stored)
			writeError(w, op, err)
			return
		}
		stored = append(stored, sf.Path)
		payload[a.field] = sf.PublicURL
		resp[a.urlKey] = sf.PublicURL
	}

	item, err := e.Create(r.Context(), payload)
	if err != nil {
		h.discard(op, stored)
		writeError(w, op, err)
		return
	}

	msg := res.DisplayTitle() + " created successfully"
	if len(stored) > 0 {
		msg += " with files uploaded"
	}
	resp["message"] = msg
	resp[res.Singular] = item
	writeJSON(w, http.StatusCreated, resp)
}

// discard removes uploads whose record was never created. It runs on a
// fresh context so a cancelled request still cleans up.
func (h *APIHandler) discard(op string, paths []string) {
	for _, p := range paths {
		if err := h.files.Remove(context.Background(), p); err != nil {
			logger.Warn(op+" orphaned upload left in storage", logger.String("path", p), logger.ErrorField(err))
		}
	}
}

func (h *APIHandler) TrackUploadHandler(w http.ResponseWriter, r *http.Request) {
	h.createWithFiles(w, r, "[TrackUpload]", h.engine(resource.Tracks), []attachment{
		{part: "audio", field: "trackFile", urlKey: "audioUrl", policy: h.files.Audio},
		{part: "image", field: "trackImage", urlKey: "imageUrl", policy: h.files.Images},
	})
}

func (h *APIHandler) SoundKitUploadHandler(w http.ResponseWriter, r *http.Request) {
	h.createWithFiles(w, r, "[SoundKitUpload]", h.engine(resource.SoundKits), []attachment{
		{part: "kitFile", field: "kitFile", urlKey: "kitFileUrl", policy: h.files.Kits},
		{part: "image", field: "kitImage", urlKey: "imageUrl", policy: h.files.Images},
	})
}

// filePath reads the object key from the route or the path query parameter.
func filePath(r *http.Request) string {
	if p := mux.Vars(r)["path"]; p != "" {
		return p
	}
	return r.URL.Query().Get("path")
}

// GetFileHandler streams an object through the API.
func (h *APIHandler) GetFileHandler(w http.ResponseWriter, r *http.Request) {
	body, info, err := h.files.Retrieve(r.Context(), filePath(r))
	if err != nil {
		writeError(w, "[File]", err)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		logger.Error("[File] error streaming object", logger.String("path", info.Path), logger.ErrorField(err))
	}
}

func (h *APIHandler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.files.Remove(r.Context(), filePath(r)); err != nil {
		writeError(w, "[File]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "File deleted successfully",
	})
}

func (h *APIHandler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.UploadListLimit
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n < limit {
		limit = n
	}
	files, err := h.files.List(r.Context(), r.URL.Query().Get("prefix"), limit)
	if err != nil {
		writeError(w, "[Files]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"files":   files,
	})
}

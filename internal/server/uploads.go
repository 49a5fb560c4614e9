package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"shopadmin/internal/blob"

	"github.com/go-chi/chi/v5"
)

const maxUpload = 5 << 20

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+1<<10)
	f, _, err := r.FormFile("image")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read image")
		return
	}
	if len(data) > maxUpload {
		writeMessage(w, http.StatusBadRequest, "Image too large")
		return
	}
	// Sniff rather than trust the client's declared type.
	ct := http.DetectContentType(data)
	ext, ok := imageExt[ct]
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Images only")
		return
	}

	key := "image-" + strconv.FormatInt(s.now().UnixMilli(), 10) + ext
	info, err := s.blobs.Put(r.Context(), key, bytes.NewReader(data), ct)
	if errors.Is(err, blob.ErrExists) {
		// Same millisecond; a suffix keeps the key unique.
		key = fmt.Sprintf("image-%d-%d%s", s.now().UnixMilli(), s.now().UnixNano()%1000, ext)
		info, err = s.blobs.Put(r.Context(), key, bytes.NewReader(data), ct)
	}
	if err != nil {
		s.logger.Error("upload failed", "key", key, "driver", s.blobs.Driver(), "err", err)
		writeMessage(w, http.StatusInternalServerError, "Upload failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Image uploaded successfully",
		"image":   "/uploads/" + info.Key,
	})
}

func (s *Server) handleUploadGet(w http.ResponseWriter, r *http.Request) {
	info, rc, err := s.blobs.Get(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, blob.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		s.logger.Error("read upload", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rc.Close()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

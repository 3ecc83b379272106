package ui

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"metastats/app"
	apperrors "metastats/internal/errors"
)

// maxUploadSize caps each uploaded table at 50MB.
const maxUploadSize = 50 * 1024 * 1024

var allowedUploadExtensions = []string{".csv", ".tsv", ".txt", ".xlsx"}

// handleUpload takes the feature quantification table and the metadata table
// in one multipart request, saves both, and runs cleanup.
func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		a.renderError(w, http.StatusBadRequest, apperrors.UploadInvalid("request is not a valid multipart form", err))
		return
	}

	featurePath, err := a.saveUpload(r, "feature_file")
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	metaPath, err := a.saveUpload(r, "metadata_file")
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}

	// The current session survives until the new upload cleans successfully.
	sess, err := a.prepare.LoadFiles(r.Context(), app.NewSession(), featurePath, metaPath)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	a.sessions.Replace(sess)

	http.Redirect(w, r, "/prepare", http.StatusSeeOther)
}

// handleDemo loads the generated demo dataset and runs cleanup on it.
func (a *App) handleDemo(w http.ResponseWriter, r *http.Request) {
	rawFT, rawMD, _ := a.kit.DemoUpload()

	sess, err := a.prepare.Cleanup(r.Context(), app.NewSession(), rawFT, rawMD)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	a.sessions.Replace(sess)

	http.Redirect(w, r, "/prepare", http.StatusSeeOther)
}

// handleReset discards the current session.
func (a *App) handleReset(w http.ResponseWriter, r *http.Request) {
	a.sessions.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleBlankFilter removes background features against the selected blank
// level, then drops the blank samples from the session.
func (a *App) handleBlankFilter(w http.ResponseWriter, r *http.Request) {
	attribute := r.FormValue("attribute")
	level := r.FormValue("level")
	cutoff := 0.0
	if raw := r.FormValue("cutoff"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			a.renderError(w, http.StatusBadRequest, apperrors.InvalidInput("cutoff must be a number"))
			return
		}
		cutoff = v
	}

	sess, err := a.prepare.FilterBlanks(r.Context(), a.sessions.Current(), attribute, level, cutoff)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	a.sessions.Replace(sess)

	http.Redirect(w, r, "/prepare", http.StatusSeeOther)
}

// handleImpute replaces remaining zeros with uniform draws below the LOD.
func (a *App) handleImpute(w http.ResponseWriter, r *http.Request) {
	var seed int64
	if raw := r.FormValue("seed"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			a.renderError(w, http.StatusBadRequest, apperrors.InvalidInput("seed must be an integer"))
			return
		}
		seed = v
	}

	sess, err := a.prepare.Impute(r.Context(), a.sessions.Current(), seed)
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	a.sessions.Replace(sess)

	http.Redirect(w, r, "/prepare", http.StatusSeeOther)
}

// handleSubmit freezes the prepared tables into the analysis matrix.
func (a *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := a.prepare.Submit(r.Context(), a.sessions.Current())
	if err != nil {
		a.renderError(w, statusFor(err), err)
		return
	}
	a.sessions.Replace(sess)

	http.Redirect(w, r, "/compare", http.StatusSeeOther)
}

// saveUpload persists one multipart file into the upload directory and
// returns its path. The stored name keeps the original extension so the
// reader can pick the right format.
func (a *App) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", apperrors.UploadInvalid(fmt.Sprintf("missing %s", field), err)
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		return "", apperrors.UploadInvalid(
			fmt.Sprintf("%s exceeds the %dMB limit", header.Filename, maxUploadSize/(1024*1024)), nil)
	}
	if !hasAllowedExtension(header.Filename) {
		return "", apperrors.UploadInvalid(
			fmt.Sprintf("%s: only CSV, TSV, TXT and XLSX files are accepted", header.Filename), nil)
	}

	return writeUploadFile(a.uploadDir, header.Filename, file)
}

func hasAllowedExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range allowedUploadExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// saveMultipartUpload is the header-based variant used by the API shell.
func saveMultipartUpload(dir string, header *multipart.FileHeader) (string, error) {
	if header.Size > maxUploadSize {
		return "", apperrors.UploadInvalid(
			fmt.Sprintf("%s exceeds the %dMB limit", header.Filename, maxUploadSize/(1024*1024)), nil)
	}
	if !hasAllowedExtension(header.Filename) {
		return "", apperrors.UploadInvalid(
			fmt.Sprintf("%s: only CSV, TSV, TXT and XLSX files are accepted", header.Filename), nil)
	}

	file, err := header.Open()
	if err != nil {
		return "", apperrors.UploadInvalid("failed to open uploaded file", err)
	}
	defer file.Close()

	return writeUploadFile(dir, header.Filename, file)
}

func writeUploadFile(dir, filename string, src multipart.File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, "failed to create upload directory")
	}

	name := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(filename))
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to create upload file")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", apperrors.Wrap(err, "failed to write upload file")
	}
	return path, nil
}

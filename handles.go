package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	mw "filecodebox.io/fcb/common/middleware"
	"filecodebox.io/fcb/constants"
	pe "filecodebox.io/fcb/errors"
	"filecodebox.io/fcb/models"
)

const (
	respMsgMalformedBody = "got malformed request body"
	respMsgInternal      = "internal error"
	// slack on top of the file size cap for the rest of the multipart form
	multipartOverhead = 1 << 20
)

// respond writes the {code, detail} envelope every JSON endpoint uses.
func respond(w http.ResponseWriter, status int, detail interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"code":   status,
		"detail": detail,
	}); err != nil {
		log.WithError(err).Error("error writing response to client")
	}
}

func respondErr(w http.ResponseWriter, err *pe.Err) {
	status := err.StatusCode()
	if status == http.StatusInternalServerError {
		log.WithField("error", err.Trace()).Error("request failed")
		respond(w, status, respMsgInternal)
		return
	}
	respond(w, status, err.Error())
}

// shareInfo is the public view of a record; the blob key stays private.
type shareInfo struct {
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	Text      string     `json:"text,omitempty"`
	FileName  string     `json:"file_name,omitempty"`
	Size      int64      `json:"size"`
	ExpiredAt *time.Time `json:"expired_at"`
	UsedCount int64      `json:"used_count"`
	CreatedAt time.Time  `json:"created_at"`
}

func toShareInfo(rec *models.ShareRecord) *shareInfo {
	info := &shareInfo{
		Code:      rec.Code,
		Kind:      "text",
		Text:      rec.Text,
		Size:      rec.Size,
		ExpiredAt: rec.ExpiredAt,
		UsedCount: rec.UsedCount,
		CreatedAt: rec.CreatedAt,
	}
	if rec.Kind() == models.KindFile {
		info.Kind = "file"
		info.FileName = rec.FileName()
	}
	return info
}

// expiryParams is the expire_value/expire_style pair accepted on all
// upload endpoints.
type expiryParams struct {
	Value int    `json:"expire_value"`
	Style string `json:"expire_style"`
}

func expiryFromForm(r *http.Request) expiryParams {
	v, _ := strconv.Atoi(r.FormValue("expire_value"))
	return expiryParams{Value: v, Style: r.FormValue("expire_style")}
}

func (s *fcbServer) HandleShareText() httprouter.Handle {
	type req struct {
		Text string `json:"text"`
		expiryParams
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		r.Body = http.MaxBytesReader(w, r.Body, s.Svc.MaxTextSize+multipartOverhead)
		in := &req{}
		if err := json.NewDecoder(r.Body).Decode(in); err != nil {
			respond(w, http.StatusBadRequest, respMsgMalformedBody)
			return
		}
		code, err := s.Svc.ShareText(in.Text, in.Value, in.Style)
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, map[string]string{"code": code})
	}
}

func (s *fcbServer) HandleShareFile() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		r.Body = http.MaxBytesReader(w, r.Body, s.Svc.MaxFileSize+multipartOverhead)
		f, fh, ferr := r.FormFile("file")
		if ferr != nil {
			respond(w, http.StatusBadRequest, "missing or unreadable file field")
			return
		}
		defer f.Close()
		exp := expiryFromForm(r)
		code, err := s.Svc.ShareFile(r.Context(), f, fh.Size, fh.Filename, exp.Value, exp.Style)
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, map[string]string{"code": code})
	}
}

func (s *fcbServer) HandleShareChunk() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		r.Body = http.MaxBytesReader(w, r.Body, s.Svc.MaxFileSize+multipartOverhead)
		f, _, ferr := r.FormFile("chunk")
		if ferr != nil {
			respond(w, http.StatusBadRequest, "missing or unreadable chunk field")
			return
		}
		defer f.Close()
		data, rerr := io.ReadAll(f)
		if rerr != nil {
			respond(w, http.StatusBadRequest, "error reading chunk content")
			return
		}
		index, ierr := strconv.Atoi(r.FormValue("chunkIndex"))
		total, terr := strconv.Atoi(r.FormValue("totalChunks"))
		if ierr != nil || terr != nil {
			respond(w, http.StatusBadRequest, "chunkIndex and totalChunks must be integers")
			return
		}
		if err := s.Chunks.SaveChunk(r.FormValue("uploadId"), index, total, data); err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, map[string]interface{}{"uploadId": r.FormValue("uploadId"), "chunkIndex": index})
	}
}

func (s *fcbServer) HandleShareMerge() httprouter.Handle {
	type req struct {
		UploadID    string `json:"uploadId"`
		FileName    string `json:"fileName"`
		FileSize    int64  `json:"fileSize"`
		TotalChunks int    `json:"totalChunks"`
		expiryParams
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		in := &req{}
		if err := json.NewDecoder(r.Body).Decode(in); err != nil {
			respond(w, http.StatusBadRequest, respMsgMalformedBody)
			return
		}
		code, err := s.Chunks.Merge(r.Context(), in.UploadID, in.FileName, in.FileSize, in.TotalChunks, in.Value, in.Style)
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, map[string]string{"code": code})
	}
}

func (s *fcbServer) HandleGetShare() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rec, err := s.Svc.Retrieve(ps.ByName("code"))
		if err != nil {
			respondErr(w, err)
			return
		}
		respond(w, http.StatusOK, toShareInfo(rec))
	}
}

func (s *fcbServer) HandleDownload() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rec, rc, err := s.Svc.Download(r.Context(), ps.ByName("code"))
		if err != nil {
			respondErr(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(rec.FileName())))
		w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
		if _, cerr := io.Copy(w, rc); cerr != nil {
			// headers are out the door; all we can do is log
			log.WithFields(log.Fields{
				"code":  rec.Code,
				"error": cerr,
			}).Error("error streaming share content to client")
		}
	}
}

func (s *fcbServer) HandleHealth() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if _, err := s.Records.Get(constants.KeyPrefixRecord + "000000"); err != nil && err.Code != pe.ErrCodeNotFound {
			log.WithField("error", err.Trace()).Error("health probe failed against record store")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unhealthy"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy"}`)
	}
}

// HandleNoticeCheck tells a client whether to show the first-visit notice.
// Store trouble means no notice rather than a failed page load.
func (s *fcbServer) HandleNoticeCheck() httprouter.Handle {
	type resp struct {
		Show bool `json:"show"`
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := constants.KeyPrefixNotice + mw.ClientIdentity(r, ps)
		_, err := s.Records.Get(key)
		show := err != nil && err.Code == pe.ErrCodeNotFound
		respond(w, http.StatusOK, &resp{Show: show})
	}
}

func (s *fcbServer) HandleNoticeAck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := constants.KeyPrefixNotice + mw.ClientIdentity(r, ps)
		ttl := time.Duration(viper.GetInt(constants.EnvNoticeTTLHours)) * time.Hour
		if err := s.Records.Put(key, []byte("1"), ttl); err != nil {
			// the client will just see the notice again
			log.WithField("error", err.Trace()).Warn("failed to record notice acknowledgment")
		}
		respond(w, http.StatusOK, map[string]bool{"acked": true})
	}
}

func (s *fcbServer) HandleVerifyPermanent() httprouter.Handle {
	type req struct {
		Password string `json:"password"`
	}
	type resp struct {
		Valid   bool   `json:"valid"`
		Message string `json:"message,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		in := &req{}
		if err := json.NewDecoder(r.Body).Decode(in); err != nil {
			respond(w, http.StatusBadRequest, respMsgMalformedBody)
			return
		}
		want := viper.GetString(constants.EnvPermanentPasswd)
		if want == "" {
			respond(w, http.StatusBadRequest, &resp{Valid: false, Message: "permanent shares are disabled"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(in.Password), []byte(want)) != 1 {
			respond(w, http.StatusBadRequest, &resp{Valid: false, Message: "wrong password"})
			return
		}
		respond(w, http.StatusOK, &resp{Valid: true})
	}
}

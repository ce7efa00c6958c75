package storage

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/formgrid/formgrid/pkg/httputil"
	"github.com/formgrid/formgrid/pkg/observability"
)

// SignHandler serves the storage-signing sub-path. The enforcement
// middleware has already re-targeted and allowed the request against the
// submission's permissions by the time this handler runs.
type SignHandler struct {
	signer Signer
	logger *observability.Logger
}

// NewSignHandler creates the signing endpoint handler
func NewSignHandler(signer Signer, logger *observability.Logger) *SignHandler {
	return &SignHandler{signer: signer, logger: logger}
}

// ServeHTTP handles
// GET /project/{projectID}/form/{formID}/submission/{submissionID}/storage/s3.
// A file query parameter names the object; upload=true presigns a PUT
// instead of a GET.
func (h *SignHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	file := r.URL.Query().Get("file")
	if file == "" {
		httputil.WriteBadRequest(w, "file parameter is required")
		return
	}
	key := objectKey(vars["projectID"], vars["formID"], vars["submissionID"], file)

	var signed *SignedURL
	var err error
	if r.URL.Query().Get("upload") == "true" {
		signed, err = h.signer.SignUpload(r.Context(), key, r.URL.Query().Get("type"))
	} else {
		signed, err = h.signer.SignDownload(r.Context(), key)
	}
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Error(r.Context(), "presign failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, signed)
}

// objectKey namespaces submission files by project, form, and submission
func objectKey(projectID, formID, submissionID, file string) string {
	return fmt.Sprintf("%s/%s/%s/%s", projectID, formID, submissionID, file)
}

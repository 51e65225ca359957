package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/collection-ingest/internal/ingest"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

var errInvalidRequest = errors.New("invalid request")

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

type saveMappingRequest struct {
	CollectionID int64             `json:"collection_id" validate:"gt=0"`
	Mapping      map[string]string `json:"mapping" validate:"required"`
	// IgnoreUnmapped defaults to true when omitted.
	IgnoreUnmapped *bool `json:"ignore_unmapped"`
}

type scrapeURLRequest struct {
	URL          string `json:"url" validate:"required,http_url"`
	CollectionID int64  `json:"collection_id" validate:"gt=0"`
	// ApplyMapping defaults to true when omitted.
	ApplyMapping *bool `json:"apply_mapping"`
}

type bulkScrapeRequest struct {
	URLs         []string `json:"urls" validate:"required,min=1,dive,required,http_url"`
	CollectionID int64    `json:"collection_id" validate:"gt=0"`
	ApplyMapping bool     `json:"apply_mapping"`
}

// uploadForm is the multipart body of the CSV endpoints.
type uploadForm struct {
	CollectionID int64 `validate:"gt=0"`
	ApplyMapping bool
	Filename     string `validate:"required"`
	File         multipart.File
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errInvalidRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errInvalidRequest)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", errInvalidRequest, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// parseUpload reads the multipart CSV form. A file without the .csv
// extension is rejected with the client-facing reason.
func parseUpload(w http.ResponseWriter, r *http.Request) (uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return uploadForm{}, fmt.Errorf("%w: parse form: %v", errInvalidRequest, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadForm{}, fmt.Errorf("%w: file is required", errInvalidRequest)
	}
	form := uploadForm{Filename: header.Filename, File: file}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		_ = file.Close()
		return uploadForm{}, ingest.NotCSVError()
	}

	form.CollectionID, err = strconv.ParseInt(strings.TrimSpace(r.FormValue("collection_id")), 10, 64)
	if err != nil {
		_ = file.Close()
		return uploadForm{}, fmt.Errorf("%w: collection_id must be an integer", errInvalidRequest)
	}
	if raw := strings.TrimSpace(r.FormValue("apply_mapping")); raw != "" {
		form.ApplyMapping, err = strconv.ParseBool(raw)
		if err != nil {
			_ = file.Close()
			return uploadForm{}, fmt.Errorf("%w: apply_mapping must be a boolean", errInvalidRequest)
		}
	}
	if err := validateStruct(form); err != nil {
		_ = file.Close()
		return uploadForm{}, err
	}
	return form, nil
}

func parseCollectionID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "collection_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid collection_id", errInvalidRequest)
	}
	return id, nil
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}
